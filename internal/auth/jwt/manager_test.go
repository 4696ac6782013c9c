package jwt

import (
	"testing"
	"time"

	"github.com/almoxsms/almox-backend/pkg/config"
	"github.com/almoxsms/almox-backend/pkg/errors"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "almox",
	})
}

var testUser = &UserInfo{ID: "u-1", Email: "a@almox.test", Nome: "Ana", Role: "gerente_almox", ScopeID: "alm-1"}

func TestGenerateAndValidate(t *testing.T) {
	m := testManager()

	pair, err := m.GenerateTokenPair(testUser, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "gerente_almox", claims.Role)
	assert.Equal(t, "alm-1", claims.ScopeID)

	refresh, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", refresh.SessionID)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestExpiredToken(t *testing.T) {
	m := testManager()
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }

	pair, err := m.GenerateTokenPair(testUser, "sess-1")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))

	_, err = m.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRejectsForeignTokens(t *testing.T) {
	m := testManager()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager(&config.JWTConfig{Secret: "other", AccessExpiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "almox"})
		pair, err := other.GenerateTokenPair(testUser, "s")
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(pair.AccessToken)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "someone"})
		pair, err := other.GenerateTokenPair(testUser, "s")
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(pair.AccessToken)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("alg none", func(t *testing.T) {
		token := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{UserID: "u-1"})
		s, err := token.SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.ValidateAccessToken(s)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})
}

func TestExpiries(t *testing.T) {
	m := testManager()
	assert.Equal(t, time.Minute, m.GetTokenExpiry())
	assert.Equal(t, time.Hour, m.GetRefreshExpiry())
}
