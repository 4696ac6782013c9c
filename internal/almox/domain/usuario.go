package domain

import (
	"time"

	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/lib/pq"
)

// Role re-exports actor.Role so domain code does not need both imports.
type Role = actor.Role

// Usuario is an account. Its central is derived from Role and ScopeID, never stored.
type Usuario struct {
	Identity
	Nome         string         `db:"nome" json:"nome"`
	Email        string         `db:"email" json:"email"`
	Username     string         `db:"username" json:"username"`
	SenhaHash    string         `db:"senha_hash" json:"-"`
	Role         Role           `db:"role" json:"role"`
	ScopeID      string         `db:"scope_id" json:"scope_id,omitempty"`
	CategoriaIDs pq.StringArray `db:"categoria_ids" json:"categoria_ids,omitempty"`
	Ativo        bool           `db:"ativo" json:"ativo"`

	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ScopeTipo is the location kind a role's scope_id names. Roles whose scope
// kind is not fixed return "".
func ScopeTipo(role Role) LocalTipo {
	switch role {
	case actor.RoleAdminCentral:
		return LocalCentral
	case actor.RoleGerenteAlmox:
		return LocalAlmoxarifado
	case actor.RoleRespSubAlmox:
		return LocalSubAlmoxarifado
	case actor.RoleOperadorSetor:
		return LocalSetor
	default:
		return ""
	}
}

// Actor builds the request actor; centralID comes from the hierarchy.
func (u *Usuario) Actor(centralID string) *actor.Actor {
	return &actor.Actor{
		ID:           u.ID,
		Nome:         u.Nome,
		Email:        u.Email,
		Username:     u.Username,
		Role:         u.Role,
		ScopeID:      u.ScopeID,
		CentralID:    centralID,
		CategoriaIDs: []string(u.CategoriaIDs),
	}
}
