// Package policy decides whether an actor may perform an operation. Every
// write path asks here before touching the store; reads take their row
// filter from Scope.
package policy

import (
	"context"
	"slices"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
)

// Denial reasons, shown to the user inside errors.forbidden.
const (
	ReasonUnauthenticated = "usuário não identificado"
	ReasonRole            = "seu perfil não permite esta operação"
	ReasonLocal           = "local fora do seu escopo"
	ReasonSetor           = "operação permitida apenas no seu próprio setor"
	ReasonDestino         = "destino fora do seu escopo e não recebe de outras centrais"
	ReasonProduto         = "produto pertence a outra central"
	ReasonCentral         = "apenas o super administrador gerencia centrais"
	ReasonUsuario         = "usuário fora do seu escopo"
	ReasonCategoria       = "categoria não atribuída ao seu usuário"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is a positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is a negative decision carrying its reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into a Forbidden error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errors.Forbidden(d.Reason)
}

// Policy combines the role capability table with the location hierarchy.
type Policy struct {
	resolver *hierarchy.Resolver
}

// New creates a policy backed by resolver.
func New(resolver *hierarchy.Resolver) *Policy {
	return &Policy{resolver: resolver}
}

// Can checks the role capability table.
func (p *Policy) Can(a *actor.Actor, capability string) Decision {
	if a == nil {
		return Deny(ReasonUnauthenticated)
	}
	if !permissions.RoleCan(a.Role, capability) {
		return Deny(ReasonRole)
	}
	return Allow()
}

// Scope is the read filter of the actor.
func (p *Policy) Scope(ctx context.Context, a *actor.Actor) (domain.Scope, error) {
	if a == nil {
		return domain.Scope{}, nil
	}
	return p.resolver.AllowedLocationsFor(ctx, a.Role, a.ScopeID, hierarchy.Options{})
}

// CanActOn checks that the actor may move stock in or out of a location.
// operador_setor is limited to its own setor.
func (p *Policy) CanActOn(ctx context.Context, a *actor.Actor, tipo domain.LocalTipo, id string) (Decision, error) {
	switch {
	case a == nil:
		return Deny(ReasonUnauthenticated), nil
	case a.IsSuperAdmin():
		return Allow(), nil
	case a.Role == actor.RoleOperadorSetor:
		if tipo == domain.LocalSetor && identity.Matches(a.ScopeID, id) {
			return Allow(), nil
		}
		return Deny(ReasonSetor), nil
	}

	scope, err := p.Scope(ctx, a)
	if err != nil {
		return Decision{}, err
	}
	if scope.Contains(tipo, id) {
		return Allow(), nil
	}
	return Deny(ReasonLocal), nil
}

// CanReceive checks a transfer destination: inside the actor's read scope,
// or, when the caller asked for an inter-central transfer, flagged to receive
// from other centrais.
func (p *Policy) CanReceive(ctx context.Context, a *actor.Actor, dest *domain.Local, interCentral bool) (Decision, error) {
	if a == nil {
		return Deny(ReasonUnauthenticated), nil
	}
	if a.IsSuperAdmin() || (interCentral && dest.CanReceiveInterCentral) {
		return Allow(), nil
	}
	scope, err := p.Scope(ctx, a)
	if err != nil {
		return Decision{}, err
	}
	if scope.Contains(dest.Tipo, dest.ID) {
		return Allow(), nil
	}
	return Deny(ReasonDestino), nil
}

// CanManageProduto checks ownership: only users of the owning central (and
// super_admin) may change a product.
func (p *Policy) CanManageProduto(a *actor.Actor, centralID string) Decision {
	switch {
	case a == nil:
		return Deny(ReasonUnauthenticated)
	case a.IsSuperAdmin():
		return Allow()
	case a.CentralID != "" && identity.Matches(a.CentralID, centralID):
		return Allow()
	}
	return Deny(ReasonProduto)
}

// CanManageLocal checks that a location hangs below the actor's scope.
// Centrais are managed by super_admin only.
func (p *Policy) CanManageLocal(ctx context.Context, a *actor.Actor, l *domain.Local) (Decision, error) {
	switch {
	case a == nil:
		return Deny(ReasonUnauthenticated), nil
	case a.IsSuperAdmin():
		return Allow(), nil
	case l.Tipo == domain.LocalCentral:
		return Deny(ReasonCentral), nil
	}

	var parents []domain.LocalRef
	switch l.Tipo {
	case domain.LocalAlmoxarifado:
		parents = append(parents, domain.LocalRef{Tipo: domain.LocalCentral, ID: l.CentralID})
	case domain.LocalSubAlmoxarifado:
		parents = append(parents, domain.LocalRef{Tipo: domain.LocalAlmoxarifado, ID: l.AlmoxarifadoID})
	case domain.LocalSetor:
		if l.AlmoxarifadoID != "" {
			parents = append(parents, domain.LocalRef{Tipo: domain.LocalAlmoxarifado, ID: l.AlmoxarifadoID})
		}
		for _, sub := range l.SubLinks() {
			parents = append(parents, domain.LocalRef{Tipo: domain.LocalSubAlmoxarifado, ID: sub})
		}
	}
	parents = slices.DeleteFunc(parents, func(r domain.LocalRef) bool { return r.ID == "" })
	if len(parents) == 0 {
		return Deny(ReasonLocal), nil
	}

	scope, err := p.Scope(ctx, a)
	if err != nil {
		return Decision{}, err
	}
	for _, parent := range parents {
		if !scope.Contains(parent.Tipo, parent.ID) {
			return Deny(ReasonLocal), nil
		}
	}
	return Allow(), nil
}

// CanManageUser: super_admin manages anyone; admin_central manages the
// non-admin users of its own central; nobody else manages users.
func (p *Policy) CanManageUser(ctx context.Context, a *actor.Actor, role actor.Role, scopeID string) (Decision, error) {
	switch {
	case a == nil:
		return Deny(ReasonUnauthenticated), nil
	case a.IsSuperAdmin():
		return Allow(), nil
	case a.Role != actor.RoleAdminCentral:
		return Deny(ReasonRole), nil
	case role == actor.RoleSuperAdmin || role == actor.RoleAdminCentral:
		return Deny(ReasonUsuario), nil
	}

	central, err := p.resolver.CentralFor(ctx, role, scopeID)
	if err != nil {
		return Decision{}, err
	}
	if central == "" || !identity.Matches(a.CentralID, central) {
		return Deny(ReasonUsuario), nil
	}
	return Allow(), nil
}

// CanUseCategoria checks the actor's category restriction. An actor without
// categorias is unrestricted.
func (p *Policy) CanUseCategoria(a *actor.Actor, categoriaID string) Decision {
	if a == nil {
		return Deny(ReasonUnauthenticated)
	}
	if a.IsSuperAdmin() || len(a.CategoriaIDs) == 0 || categoriaID == "" {
		return Allow()
	}
	if identity.MatchesAny(a.CategoriaIDs, categoriaID) {
		return Allow()
	}
	return Deny(ReasonCategoria)
}
