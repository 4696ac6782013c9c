// Package actor identifies the user performing an action: who they are, which
// role they hold and which location their scope points at.
//
// The authentication middleware attaches an Actor to every request context;
// policy checks, scope filters and audit fields (usuario_responsavel,
// atendido_por) read it from there.
package actor

import (
	"context"
	"fmt"
)

// Role is one of the fixed access roles.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdminCentral  Role = "admin_central"
	RoleGerenteAlmox  Role = "gerente_almox"
	RoleRespSubAlmox  Role = "resp_sub_almox"
	RoleOperadorSetor Role = "operador_setor"
	RoleOperador      Role = "operador"
)

// Roles lists every valid role, broadest first.
var Roles = []Role{
	RoleSuperAdmin,
	RoleAdminCentral,
	RoleGerenteAlmox,
	RoleRespSubAlmox,
	RoleOperadorSetor,
	RoleOperador,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Actor represents the user performing an action.
type Actor struct {
	ID       string `json:"id"`
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`

	// ScopeID names the location the role is bound to: a central for
	// admin_central, an almoxarifado for gerente_almox and so on.
	ScopeID string `json:"scope_id,omitempty"`

	// CentralID is derived from Role and ScopeID, never stored.
	CentralID string `json:"central_id,omitempty"`

	CategoriaIDs []string `json:"categoria_ids,omitempty"`
}

// IsSuperAdmin reports whether the actor bypasses every scope restriction.
func (a *Actor) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s, %s)", a.Nome, a.Email, a.Role)
}

// DisplayName is what goes into usuario_responsavel and observation lines.
func (a *Actor) DisplayName() string {
	switch {
	case a == nil:
		return "system"
	case a.Nome != "":
		return a.Nome
	case a.Username != "":
		return a.Username
	default:
		return a.Email
	}
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActorID identifies background work such as event consumers.
const SystemActorID = "00000000-0000-0000-0000-000000000000"

// SystemActor returns an unrestricted Actor for background jobs.
func SystemActor() *Actor {
	return &Actor{
		ID:    SystemActorID,
		Nome:  "Sistema",
		Email: "system@almox.local",
		Role:  RoleSuperAdmin,
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemActorID
}
