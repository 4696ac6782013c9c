package service

import (
	"context"
	"strings"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/internal/auth/jwt"
	"github.com/almoxsms/almox-backend/internal/auth/repository"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Sessions is the session persistence the service needs.
type Sessions interface {
	Create(ctx context.Context, s *repository.Session, refreshToken string) error
	GetByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error)
	Rotate(ctx context.Context, id, refreshToken string, expiresAt time.Time) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, usuarioID string) error
}

// AuthService handles authentication logic
type AuthService struct {
	usuarios   store.UsuarioStore
	resolver   *hierarchy.Resolver
	sessions   Sessions
	jwtManager *jwt.Manager
	logger     *logger.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(usuarios store.UsuarioStore, resolver *hierarchy.Resolver, sessions Sessions, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthService{
		usuarios:   usuarios,
		resolver:   resolver,
		sessions:   sessions,
		jwtManager: jwtManager,
		logger:     log.WithComponent("auth-service"),
		now:        time.Now,
	}
}

// LoginRequest represents a login request. Email also accepts a username.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Username"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

// Login is the email or username the request carries.
func (r LoginRequest) Login() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// UserInfo is the signed in account as the frontend sees it.
type UserInfo struct {
	ID           string     `json:"id"`
	Nome         string     `json:"nome"`
	Email        string     `json:"email"`
	Username     string     `json:"username,omitempty"`
	Role         actor.Role `json:"role"`
	ScopeID      string     `json:"scope_id,omitempty"`
	CentralID    string     `json:"central_id,omitempty"`
	CategoriaIDs []string   `json:"categoria_ids,omitempty"`
	Permissions  []string   `json:"permissions"`
}

// Login checks the credentials and opens a session
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, userAgent, ipAddress string) (*LoginResponse, error) {
	u, err := s.usuarios.GetByLogin(ctx, strings.TrimSpace(req.Login()))
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.InvalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte(req.Password)) != nil {
		s.logger.For(ctx).Info().Str("user_id", u.ID).Msg("login rejected: wrong password")
		return nil, errors.InvalidCredentials()
	}
	if !u.Ativo {
		return nil, errors.Unauthorized("usuário inativo")
	}

	info, err := s.userInfo(ctx, u)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	tokens, err := s.jwtManager.GenerateTokenPair(tokenInfo(u), sessionID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	session := &repository.Session{
		ID:        sessionID,
		UsuarioID: u.ID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: s.now().Add(s.jwtManager.GetRefreshExpiry()),
	}
	if err := s.sessions.Create(ctx, session, tokens.RefreshToken); err != nil {
		s.logger.For(ctx).Error().Err(err).Msg("failed to create session")
		return nil, errors.Internal("failed to create session")
	}

	if err := s.usuarios.TouchLogin(ctx, u.ID, s.now()); err != nil {
		s.logger.For(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("failed to record login time")
	}
	s.logger.For(ctx).Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user logged in")

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         info,
	}, nil
}

// Logout revokes the session of refreshToken
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		s.logger.For(ctx).Warn().Err(err).Msg("failed to revoke session")
	}
	return nil
}

// Refresh rotates the refresh token and issues a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil || session.ID != claims.SessionID {
		return nil, errors.Unauthorized("sessão inválida")
	}

	u, err := s.usuarios.Get(ctx, claims.UserID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if u == nil || !u.Ativo {
		if err := s.sessions.RevokeAllForUser(ctx, claims.UserID); err != nil {
			s.logger.For(ctx).Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to revoke sessions")
		}
		return nil, errors.Unauthorized("usuário inativo")
	}

	tokens, err := s.jwtManager.GenerateTokenPair(tokenInfo(u), session.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}
	if err := s.sessions.Rotate(ctx, session.ID, tokens.RefreshToken, s.now().Add(s.jwtManager.GetRefreshExpiry())); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Authenticate validates an access token and rebuilds the actor from the
// stored account, so role and scope changes apply immediately.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*actor.Actor, error) {
	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	u, err := s.usuarios.Get(ctx, claims.UserID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.TokenInvalid()
	}
	if err != nil {
		return nil, err
	}
	if !u.Ativo {
		return nil, errors.Unauthorized("usuário inativo")
	}
	return s.actorFor(ctx, u)
}

// Me describes the request actor's account
func (s *AuthService) Me(ctx context.Context) (*UserInfo, error) {
	a := actor.FromContext(ctx)
	if a == nil || a.IsSystem() {
		return nil, errors.Unauthorized("não autenticado")
	}
	u, err := s.usuarios.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return s.userInfo(ctx, u)
}

func (s *AuthService) actorFor(ctx context.Context, u *domain.Usuario) (*actor.Actor, error) {
	centralID, err := s.resolver.CentralFor(ctx, u.Role, u.ScopeID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return &actor.Actor{
		ID:           u.ID,
		Nome:         u.Nome,
		Email:        u.Email,
		Username:     u.Username,
		Role:         u.Role,
		ScopeID:      u.ScopeID,
		CentralID:    centralID,
		CategoriaIDs: u.CategoriaIDs,
	}, nil
}

func (s *AuthService) userInfo(ctx context.Context, u *domain.Usuario) (*UserInfo, error) {
	a, err := s.actorFor(ctx, u)
	if err != nil {
		return nil, err
	}
	perms := permissions.Expand(permissions.ForRole(u.Role))
	return &UserInfo{
		ID:           u.ID,
		Nome:         u.Nome,
		Email:        u.Email,
		Username:     u.Username,
		Role:         u.Role,
		ScopeID:      u.ScopeID,
		CentralID:    a.CentralID,
		CategoriaIDs: a.CategoriaIDs,
		Permissions:  perms,
	}, nil
}

func tokenInfo(u *domain.Usuario) *jwt.UserInfo {
	return &jwt.UserInfo{
		ID:      u.ID,
		Email:   u.Email,
		Nome:    u.Nome,
		Role:    string(u.Role),
		ScopeID: u.ScopeID,
	}
}
