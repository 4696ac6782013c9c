package service

import (
	"context"
	"strings"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// UsuarioService manages accounts. super_admin manages anyone and
// admin_central the non admin users of its central.
type UsuarioService struct {
	core
}

// NewUsuarioService creates a new user service
func NewUsuarioService(d Deps) *UsuarioService {
	return &UsuarioService{core: newCore(d, "usuario-service")}
}

// CreateUsuarioRequest creates an account.
type CreateUsuarioRequest struct {
	Nome         string     `json:"nome" validate:"required,max=200"`
	Email        string     `json:"email" validate:"required,email"`
	Username     string     `json:"username" validate:"omitempty,min=3,max=60"`
	Senha        string     `json:"senha" validate:"required,min=6"`
	Role         actor.Role `json:"role" validate:"required,oneof=super_admin admin_central gerente_almox resp_sub_almox operador_setor operador"`
	ScopeID      string     `json:"scope_id"`
	CategoriaIDs []string   `json:"categoria_ids"`
}

// UpdateUsuarioRequest changes an account. Nil fields stay as they are.
type UpdateUsuarioRequest struct {
	Nome         *string     `json:"nome" validate:"omitempty,max=200"`
	Email        *string     `json:"email" validate:"omitempty,email"`
	Username     *string     `json:"username" validate:"omitempty,min=3,max=60"`
	Senha        *string     `json:"senha" validate:"omitempty,min=6"`
	Role         *actor.Role `json:"role" validate:"omitempty,oneof=super_admin admin_central gerente_almox resp_sub_almox operador_setor operador"`
	ScopeID      *string     `json:"scope_id"`
	CategoriaIDs []string    `json:"categoria_ids"`
	Ativo        *bool       `json:"ativo"`
}

// UsuarioQuery filters a user listing.
type UsuarioQuery struct {
	Role   actor.Role
	Search string
}

// HashPassword hashes a password with bcrypt.
func HashPassword(senha string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Internal("failed to hash password")
	}
	return string(hash), nil
}

// scopeFor checks that the scope id names a location of the kind the role
// is bound to and returns its canonical id.
func (s *UsuarioService) scopeFor(ctx context.Context, role actor.Role, scopeID string) (string, error) {
	tipo := domain.ScopeTipo(role)
	switch {
	case role == actor.RoleSuperAdmin:
		return "", nil
	case scopeID == "":
		return "", errors.InvalidField("scope_id", "validation.required")
	}

	var (
		l   *domain.Local
		err error
	)
	if tipo != "" {
		l, err = s.Store.Locais().Get(ctx, tipo, scopeID)
	} else {
		l, err = s.Resolver.Locate(ctx, "", scopeID)
		if err == nil && l == nil {
			err = errors.NotFound("local")
		}
	}
	if errors.Is(err, errors.ErrNotFound) {
		return "", errors.InvalidField("scope_id", "validation.invalid")
	}
	if err != nil {
		return "", err
	}
	return l.ID, nil
}

func (s *UsuarioService) Create(ctx context.Context, req CreateUsuarioRequest) (*domain.Usuario, error) {
	a, err := s.authorize(ctx, permissions.UsuariosWrite)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, errors.InvalidField("role", "validation.invalid")
	}
	scopeID, err := s.scopeFor(ctx, req.Role, req.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanManageUser(ctx, a, req.Role, scopeID)); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Senha)
	if err != nil {
		return nil, err
	}

	u := &domain.Usuario{
		Nome:         strings.TrimSpace(req.Nome),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		SenhaHash:    hash,
		Role:         req.Role,
		ScopeID:      scopeID,
		CategoriaIDs: pq.StringArray(req.CategoriaIDs),
		Ativo:        true,
	}
	if err := s.Store.Usuarios().Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.For(ctx).Info().Str("usuario_id", u.ID).Str("role", string(u.Role)).Msg("usuario created")
	return u, nil
}

// managed loads a user the actor may see. Everyone sees themselves.
func (s *UsuarioService) managed(ctx context.Context, a *actor.Actor, id string) (*domain.Usuario, error) {
	u, err := s.Store.Usuarios().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Is(a.ID) {
		return u, nil
	}
	if err := s.check(s.Policy.CanManageUser(ctx, a, u.Role, u.ScopeID)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UsuarioService) Get(ctx context.Context, id string) (*domain.Usuario, error) {
	a, err := s.authorize(ctx, permissions.UsuariosRead)
	if err != nil {
		return nil, err
	}
	return s.managed(ctx, a, id)
}

// List lists the users the actor manages.
func (s *UsuarioService) List(ctx context.Context, q UsuarioQuery) ([]*domain.Usuario, error) {
	a, err := s.authorize(ctx, permissions.UsuariosRead)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Usuarios().List(ctx, store.UsuarioFilter{Role: q.Role, Search: q.Search})
	if err != nil {
		return nil, err
	}
	if a.IsSuperAdmin() {
		return rows, nil
	}

	out := rows[:0]
	for _, u := range rows {
		if u.Is(a.ID) {
			out = append(out, u)
			continue
		}
		d, err := s.Policy.CanManageUser(ctx, a, u.Role, u.ScopeID)
		if err != nil {
			return nil, err
		}
		if d.Allowed {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UsuarioService) Update(ctx context.Context, id string, req UpdateUsuarioRequest) (*domain.Usuario, error) {
	a, err := s.authorize(ctx, permissions.UsuariosWrite)
	if err != nil {
		return nil, err
	}
	u, err := s.managed(ctx, a, id)
	if err != nil {
		return nil, err
	}

	if req.Nome != nil {
		u.Nome = strings.TrimSpace(*req.Nome)
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Username != nil {
		u.Username = strings.TrimSpace(*req.Username)
	}
	if req.CategoriaIDs != nil {
		u.CategoriaIDs = pq.StringArray(req.CategoriaIDs)
	}
	if req.Ativo != nil {
		u.Ativo = *req.Ativo
	}
	if req.Role != nil || req.ScopeID != nil {
		role, scopeID := u.Role, u.ScopeID
		if req.Role != nil {
			role = *req.Role
		}
		if req.ScopeID != nil {
			scopeID = *req.ScopeID
		}
		if u.ScopeID, err = s.scopeFor(ctx, role, scopeID); err != nil {
			return nil, err
		}
		u.Role = role
		if err := s.check(s.Policy.CanManageUser(ctx, a, u.Role, u.ScopeID)); err != nil {
			return nil, err
		}
	}
	u.SenhaHash = ""
	if req.Senha != nil {
		if u.SenhaHash, err = HashPassword(*req.Senha); err != nil {
			return nil, err
		}
	}

	if err := s.Store.Usuarios().Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.For(ctx).Info().Str("usuario_id", u.ID).Msg("usuario updated")
	return u, nil
}

// Delete removes a user. Nobody deletes their own account.
func (s *UsuarioService) Delete(ctx context.Context, id string) error {
	a, err := s.authorize(ctx, permissions.UsuariosWrite)
	if err != nil {
		return err
	}
	u, err := s.managed(ctx, a, id)
	if err != nil {
		return err
	}
	if u.Is(a.ID) {
		return errors.BadRequest("não é possível excluir o próprio usuário")
	}
	if err := s.Store.Usuarios().Delete(ctx, u.ID); err != nil {
		return err
	}
	s.logger.For(ctx).Info().Str("usuario_id", u.ID).Msg("usuario deleted")
	return nil
}
