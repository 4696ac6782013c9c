package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/store/memstore"
	"github.com/almoxsms/almox-backend/internal/auth/jwt"
	"github.com/almoxsms/almox-backend/internal/auth/repository"
	"github.com/almoxsms/almox-backend/internal/auth/service"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/config"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions keeps sessions by refresh token hash.
type fakeSessions struct {
	mu       sync.Mutex
	byHash   map[string]*repository.Session
	failNext bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byHash: map[string]*repository.Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, s *repository.Session, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.Internal("boom")
	}
	s.RefreshTokenHash = repository.HashToken(refreshToken)
	cp := *s
	f.byHash[s.RefreshTokenHash] = &cp
	return nil
}

func (f *fakeSessions) GetByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[repository.HashToken(refreshToken)]
	if !ok || s.RevokedAt != nil {
		return nil, errors.NotFound("sessao")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, id, refreshToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.byHash {
		if s.ID == id && s.RevokedAt == nil {
			delete(f.byHash, hash)
			s.RefreshTokenHash = repository.HashToken(refreshToken)
			s.ExpiresAt = expiresAt
			f.byHash[s.RefreshTokenHash] = s
			return nil
		}
	}
	return errors.NotFound("sessao")
}

func (f *fakeSessions) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byHash[repository.HashToken(refreshToken)]; ok {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (f *fakeSessions) RevokeAllForUser(ctx context.Context, usuarioID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range f.byHash {
		if s.UsuarioID == usuarioID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}

type authFixture struct {
	svc      *service.AuthService
	sessions *fakeSessions
	store    *memstore.Store
	h        *testutil.Hierarchy
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	st := memstore.New()
	h := testutil.SeedHierarchy(t, st)
	sessions := newFakeSessions()
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "almox",
	})
	svc := service.NewAuthService(st.Usuarios(), hierarchy.New(st.Locais()), sessions, manager, nil)
	return &authFixture{svc: svc, sessions: sessions, store: st, h: h}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	u := testutil.SeedUsuario(t, f.store, actor.RoleGerenteAlmox, f.h.Almox.ID, func(u *domain.Usuario) {
		u.Email = "Gerente@Almox.test"
		u.Username = "gerente"
	})
	ctx := context.Background()

	t.Run("by email, case insensitive", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, &service.LoginRequest{Email: "gerente@almox.test", Password: testutil.DefaultPassword}, "test", "127.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, u.ID, resp.User.ID)
		assert.Equal(t, f.h.Central.ID, resp.User.CentralID)
		assert.Contains(t, resp.User.Permissions, "movimentacoes.entrada")
		assert.NotContains(t, resp.User.Permissions, "movimentacoes.consumo")
		assert.NotContains(t, resp.User.Permissions, "movimentacoes.*")
	})

	t.Run("by username in the email field", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &service.LoginRequest{Email: "gerente", Password: testutil.DefaultPassword}, "", "")
		require.NoError(t, err)
	})

	t.Run("by username field", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &service.LoginRequest{Username: "gerente", Password: testutil.DefaultPassword}, "", "")
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &service.LoginRequest{Email: "gerente", Password: "nope"}, "", "")
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
	})

	t.Run("unknown user looks like wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &service.LoginRequest{Email: "ninguem", Password: "x"}, "", "")
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
	})

	assert.Equal(t, 3, f.sessions.count())

	stored, err := f.store.Usuarios().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	testutil.SeedUsuario(t, f.store, actor.RoleOperador, "", func(u *domain.Usuario) {
		u.Username = "inativo"
		u.Ativo = false
	})

	_, err := f.svc.Login(context.Background(), &service.LoginRequest{Username: "inativo", Password: testutil.DefaultPassword}, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.Zero(t, f.sessions.count())
}

func TestLogin_SessionFailure(t *testing.T) {
	f := newAuthFixture(t)
	testutil.SeedUsuario(t, f.store, actor.RoleSuperAdmin, "", func(u *domain.Usuario) { u.Username = "root" })
	f.sessions.failNext = true

	_, err := f.svc.Login(context.Background(), &service.LoginRequest{Username: "root", Password: testutil.DefaultPassword}, "", "")
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	testutil.SeedUsuario(t, f.store, actor.RoleSuperAdmin, "", func(u *domain.Usuario) { u.Username = "root" })
	ctx := context.Background()

	login, err := f.svc.Login(ctx, &service.LoginRequest{Username: "root", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)

	tokens, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err, "the rotated token must not be accepted again")

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_InactiveUserLosesSessions(t *testing.T) {
	f := newAuthFixture(t)
	u := testutil.SeedUsuario(t, f.store, actor.RoleOperador, "", func(u *domain.Usuario) { u.Username = "op" })
	ctx := context.Background()

	first, err := f.svc.Login(ctx, &service.LoginRequest{Username: "op", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, &service.LoginRequest{Username: "op", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)

	stored, err := f.store.Usuarios().Get(ctx, u.ID)
	require.NoError(t, err)
	stored.Ativo = false
	require.NoError(t, f.store.Usuarios().Update(ctx, stored))

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	stored.Ativo = true
	require.NoError(t, f.store.Usuarios().Update(ctx, stored))

	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.Error(t, err, "every session of the account was revoked")
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	testutil.SeedUsuario(t, f.store, actor.RoleSuperAdmin, "", func(u *domain.Usuario) { u.Username = "root" })

	login, err := f.svc.Login(context.Background(), &service.LoginRequest{Username: "root", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), login.AccessToken)
	require.Error(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	testutil.SeedUsuario(t, f.store, actor.RoleSuperAdmin, "", func(u *domain.Usuario) { u.Username = "root" })
	ctx := context.Background()

	login, err := f.svc.Login(ctx, &service.LoginRequest{Username: "root", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	u := testutil.SeedUsuario(t, f.store, actor.RoleOperadorSetor, f.h.Setor.ID, func(u *domain.Usuario) { u.Username = "op" })
	ctx := context.Background()

	login, err := f.svc.Login(ctx, &service.LoginRequest{Username: "op", Password: testutil.DefaultPassword}, "", "")
	require.NoError(t, err)

	a, err := f.svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, a.ID)
	assert.Equal(t, actor.RoleOperadorSetor, a.Role)
	assert.Equal(t, f.h.Central.ID, a.CentralID)

	me, err := f.svc.Me(actor.WithActor(ctx, a))
	require.NoError(t, err)
	assert.Equal(t, "op", me.Username)

	t.Run("deactivated account is rejected", func(t *testing.T) {
		stored, err := f.store.Usuarios().Get(ctx, u.ID)
		require.NoError(t, err)
		stored.Ativo = false
		require.NoError(t, f.store.Usuarios().Update(ctx, stored))

		_, err = f.svc.Authenticate(ctx, login.AccessToken)
		assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "not-a-token")
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "TOKEN_INVALID", appErr.Code)
	})

	t.Run("me without actor", func(t *testing.T) {
		_, err := f.svc.Me(ctx)
		assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	})
}
