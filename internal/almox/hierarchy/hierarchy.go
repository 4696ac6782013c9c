// Package hierarchy walks the Central > Almoxarifado > Sub-Almoxarifado >
// Setor tree: ancestor chains for denormalized links and the closure of
// locations a role may see.
package hierarchy

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

// Resolver answers hierarchy questions from the location store.
type Resolver struct {
	locais store.LocalStore
}

// New creates a resolver over locais.
func New(locais store.LocalStore) *Resolver {
	return &Resolver{locais: locais}
}

// Options tunes AllowedLocationsFor.
type Options struct {
	// IncludeInterCentral adds every location flagged can_receive_inter_central.
	IncludeInterCentral bool
}

// lookup returns nil for a missing or empty reference.
func (r *Resolver) lookup(ctx context.Context, tipo domain.LocalTipo, id string) (*domain.Local, error) {
	if id == "" {
		return nil, nil
	}
	l, err := r.locais.Get(ctx, tipo, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	return l, err
}

// ResolveSetorChain derives a setor's ancestors: its almoxarifado directly
// or through the first linked sub-almoxarifado, then that almoxarifado's
// central. Broken links leave the level empty.
func (r *Resolver) ResolveSetorChain(ctx context.Context, setor *domain.Local) (domain.Chain, error) {
	chain := domain.Chain{SetorID: setor.ID}
	if subs := setor.SubLinks(); len(subs) > 0 {
		chain.SubAlmoxarifadoID = subs[0]
	}

	chain.AlmoxarifadoID = setor.AlmoxarifadoID
	if chain.AlmoxarifadoID == "" && chain.SubAlmoxarifadoID != "" {
		sub, err := r.lookup(ctx, domain.LocalSubAlmoxarifado, chain.SubAlmoxarifadoID)
		if err != nil {
			return chain, err
		}
		if sub != nil {
			chain.SubAlmoxarifadoID = sub.ID
			chain.AlmoxarifadoID = sub.AlmoxarifadoID
		}
	}

	return r.completeCentral(ctx, chain, setor.CentralID)
}

// ResolveChain derives the ancestors of any location, itself included.
func (r *Resolver) ResolveChain(ctx context.Context, l *domain.Local) (domain.Chain, error) {
	switch l.Tipo {
	case domain.LocalCentral:
		return domain.Chain{CentralID: l.ID}, nil
	case domain.LocalAlmoxarifado:
		return domain.Chain{CentralID: l.CentralID, AlmoxarifadoID: l.ID}, nil
	case domain.LocalSubAlmoxarifado:
		chain := domain.Chain{SubAlmoxarifadoID: l.ID, AlmoxarifadoID: l.AlmoxarifadoID}
		return r.completeCentral(ctx, chain, l.CentralID)
	case domain.LocalSetor:
		return r.ResolveSetorChain(ctx, l)
	}
	return domain.Chain{}, nil
}

func (r *Resolver) completeCentral(ctx context.Context, chain domain.Chain, fallback string) (domain.Chain, error) {
	almox, err := r.lookup(ctx, domain.LocalAlmoxarifado, chain.AlmoxarifadoID)
	if err != nil {
		return chain, err
	}
	if almox != nil {
		chain.AlmoxarifadoID = almox.ID
		chain.CentralID = almox.CentralID
	}
	if chain.CentralID == "" {
		chain.CentralID = fallback
	}
	return chain, nil
}

// Locate finds the location a scope id names without knowing its kind.
func (r *Resolver) Locate(ctx context.Context, tipo domain.LocalTipo, scopeID string) (*domain.Local, error) {
	return r.lookup(ctx, tipo, scopeID)
}

// CentralFor derives the central of a role's scope. super_admin and broken
// scopes yield "".
func (r *Resolver) CentralFor(ctx context.Context, role actor.Role, scopeID string) (string, error) {
	if role == actor.RoleSuperAdmin || scopeID == "" {
		return "", nil
	}
	l, err := r.lookup(ctx, domain.ScopeTipo(role), scopeID)
	if err != nil || l == nil {
		return "", err
	}
	chain, err := r.ResolveChain(ctx, l)
	return chain.CentralID, err
}

// AllowedLocationsFor expands a role and its scope into every location the
// actor may read. A scope that names nothing yields an empty restricted
// Scope, which matches no rows.
func (r *Resolver) AllowedLocationsFor(ctx context.Context, role actor.Role, scopeID string, opts Options) (domain.Scope, error) {
	if role == actor.RoleSuperAdmin {
		return domain.UnrestrictedScope(), nil
	}

	var scope domain.Scope
	root, err := r.lookup(ctx, domain.ScopeTipo(role), scopeID)
	if err != nil {
		return scope, err
	}
	if root != nil {
		if err := r.closure(ctx, root, &scope); err != nil {
			return scope, err
		}
		if role == actor.RoleOperadorSetor {
			chain, err := r.ResolveSetorChain(ctx, root)
			if err != nil {
				return scope, err
			}
			scope.Add(domain.LocalSubAlmoxarifado, chain.SubAlmoxarifadoID)
			scope.Add(domain.LocalAlmoxarifado, chain.AlmoxarifadoID)
		}
	}

	if opts.IncludeInterCentral {
		shared, err := r.locais.List(ctx, store.LocalFilter{InterCentral: true})
		if err != nil {
			return scope, err
		}
		for _, l := range shared {
			scope.Add(l.Tipo, l.Forms()...)
		}
	}
	return scope, nil
}

// closure adds l and everything below it.
func (r *Resolver) closure(ctx context.Context, l *domain.Local, scope *domain.Scope) error {
	scope.Add(l.Tipo, l.Forms()...)
	forms := l.Forms()

	var children []store.LocalFilter
	switch l.Tipo {
	case domain.LocalCentral:
		children = []store.LocalFilter{{Tipo: domain.LocalAlmoxarifado, CentralIDs: forms}}
	case domain.LocalAlmoxarifado:
		children = []store.LocalFilter{
			{Tipo: domain.LocalSubAlmoxarifado, AlmoxarifadoIDs: forms},
			{Tipo: domain.LocalSetor, AlmoxarifadoIDs: forms},
		}
	case domain.LocalSubAlmoxarifado:
		children = []store.LocalFilter{{Tipo: domain.LocalSetor, SubAlmoxarifadoIDs: forms}}
	}

	for _, f := range children {
		found, err := r.locais.List(ctx, f)
		if err != nil {
			return err
		}
		for _, child := range found {
			if scope.Contains(child.Tipo, child.ID) {
				continue
			}
			if err := r.closure(ctx, child, scope); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateSetorLinks rejects a setor whose sub-almoxarifados belong to
// different almoxarifados, or to one other than its direct almoxarifado.
func (r *Resolver) ValidateSetorLinks(ctx context.Context, setor *domain.Local) error {
	parent := setor.AlmoxarifadoID
	for _, id := range setor.SubLinks() {
		sub, err := r.lookup(ctx, domain.LocalSubAlmoxarifado, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return errors.InvalidField("sub_almoxarifado_ids", "validation.invalid")
		}
		if parent == "" {
			parent = sub.AlmoxarifadoID
			continue
		}
		if !identity.Matches(parent, sub.AlmoxarifadoID) {
			return errors.InvalidField("sub_almoxarifado_ids", "validation.subs_almoxarifado_divergente")
		}
	}
	return nil
}
