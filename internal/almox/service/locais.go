package service

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/policy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/lib/pq"
)

// LocalService manages the four location kinds.
type LocalService struct {
	core
}

// NewLocalService creates a new location service
func NewLocalService(d Deps) *LocalService {
	return &LocalService{core: newCore(d, "local-service")}
}

// LocalInput is the writable part of a location. Parent references depend
// on the kind being written.
type LocalInput struct {
	LegacyID               *string  `json:"legacy_id,omitempty"`
	Nome                   string   `json:"nome" validate:"required,max=200"`
	Descricao              string   `json:"descricao"`
	Endereco               string   `json:"endereco"`
	Responsavel            string   `json:"responsavel"`
	Email                  string   `json:"email" validate:"omitempty,email"`
	CentralID              string   `json:"central_id"`
	AlmoxarifadoID         string   `json:"almoxarifado_id"`
	SubAlmoxarifadoID      string   `json:"sub_almoxarifado_id"`
	SubAlmoxarifadoIDs     []string `json:"sub_almoxarifado_ids"`
	CanReceiveInterCentral bool     `json:"can_receive_inter_central"`
	Ativo                  *bool    `json:"ativo"`
}

// LocalQuery filters a location listing.
type LocalQuery struct {
	Search         string
	CentralID      string
	AlmoxarifadoID string
}

func writeCapability(tipo domain.LocalTipo) string {
	if tipo == domain.LocalCentral {
		return permissions.CentraisWrite
	}
	return permissions.LocaisWrite
}

func (in LocalInput) apply(l *domain.Local) {
	l.Nome = in.Nome
	l.Descricao = in.Descricao
	l.Endereco = in.Endereco
	l.Responsavel = in.Responsavel
	l.Email = in.Email
	l.CentralID = in.CentralID
	l.AlmoxarifadoID = in.AlmoxarifadoID
	l.SubAlmoxarifadoID = in.SubAlmoxarifadoID
	l.SubAlmoxarifadoIDs = pq.StringArray(in.SubAlmoxarifadoIDs)
	l.CanReceiveInterCentral = in.CanReceiveInterCentral
	if in.Ativo != nil {
		l.Ativo = *in.Ativo
	}
}

// parent loads a required parent reference.
func (s *LocalService) parent(ctx context.Context, tipo domain.LocalTipo, field, id string) (*domain.Local, error) {
	if id == "" {
		return nil, errors.InvalidField(field, "validation.required")
	}
	p, err := s.Store.Locais().Get(ctx, tipo, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.InvalidField(field, "validation.invalid")
	}
	return p, err
}

// link rewrites parent references to canonical ids and derives the central.
func (s *LocalService) link(ctx context.Context, l *domain.Local) error {
	switch l.Tipo {
	case domain.LocalCentral:
		l.CentralID, l.AlmoxarifadoID, l.SubAlmoxarifadoID, l.SubAlmoxarifadoIDs = "", "", "", nil

	case domain.LocalAlmoxarifado:
		central, err := s.parent(ctx, domain.LocalCentral, "central_id", l.CentralID)
		if err != nil {
			return err
		}
		l.CentralID = central.ID
		l.AlmoxarifadoID, l.SubAlmoxarifadoID, l.SubAlmoxarifadoIDs = "", "", nil

	case domain.LocalSubAlmoxarifado:
		almox, err := s.parent(ctx, domain.LocalAlmoxarifado, "almoxarifado_id", l.AlmoxarifadoID)
		if err != nil {
			return err
		}
		l.AlmoxarifadoID = almox.ID
		l.CentralID = almox.CentralID
		l.SubAlmoxarifadoID, l.SubAlmoxarifadoIDs = "", nil

	case domain.LocalSetor:
		subs := l.SubLinks()
		if l.AlmoxarifadoID == "" && len(subs) == 0 {
			return errors.InvalidField("almoxarifado_id", "validation.required")
		}
		if l.AlmoxarifadoID != "" {
			almox, err := s.parent(ctx, domain.LocalAlmoxarifado, "almoxarifado_id", l.AlmoxarifadoID)
			if err != nil {
				return err
			}
			l.AlmoxarifadoID = almox.ID
		}
		canonical := make(pq.StringArray, 0, len(subs))
		for _, id := range subs {
			sub, err := s.parent(ctx, domain.LocalSubAlmoxarifado, "sub_almoxarifado_ids", id)
			if err != nil {
				return err
			}
			canonical = append(canonical, sub.ID)
		}
		l.SubAlmoxarifadoID, l.SubAlmoxarifadoIDs = "", canonical
		if len(canonical) > 0 {
			l.SubAlmoxarifadoID = canonical[0]
		}
		if err := s.Resolver.ValidateSetorLinks(ctx, l); err != nil {
			return err
		}
		chain, err := s.Resolver.ResolveSetorChain(ctx, l)
		if err != nil {
			return err
		}
		l.CentralID = chain.CentralID

	default:
		return errors.InvalidField("tipo", "validation.invalid")
	}
	return nil
}

// Create creates a location of kind tipo.
func (s *LocalService) Create(ctx context.Context, tipo domain.LocalTipo, in LocalInput) (*domain.Local, error) {
	a, err := s.authorize(ctx, writeCapability(tipo))
	if err != nil {
		return nil, err
	}

	l := &domain.Local{Tipo: tipo, Ativo: true}
	l.LegacyID = in.LegacyID
	in.apply(l)
	if err := s.link(ctx, l); err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanManageLocal(ctx, a, l)); err != nil {
		return nil, err
	}
	if err := s.Store.Locais().Create(ctx, l); err != nil {
		return nil, err
	}

	s.logger.For(ctx).Info().Str("tipo", string(tipo)).Str("local_id", l.ID).Msg("local created")
	return l, nil
}

// Get returns a location visible to the actor.
func (s *LocalService) Get(ctx context.Context, tipo domain.LocalTipo, id string) (*domain.Local, error) {
	a, err := s.authorize(ctx, permissions.LocaisRead)
	if err != nil {
		return nil, err
	}
	l, err := s.Store.Locais().Get(ctx, tipo, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.visible(ctx, a)
	if err != nil {
		return nil, err
	}
	if !visible.Contains(l.Tipo, l.ID) {
		return nil, policy.Deny(policy.ReasonLocal).Err()
	}
	return l, nil
}

// visible is the read scope plus every location open to other centrais.
func (s *LocalService) visible(ctx context.Context, a *actor.Actor) (domain.Scope, error) {
	return s.Resolver.AllowedLocationsFor(ctx, a.Role, a.ScopeID, hierarchy.Options{IncludeInterCentral: true})
}

// List lists the locations of kind tipo the actor may see.
func (s *LocalService) List(ctx context.Context, tipo domain.LocalTipo, q LocalQuery) ([]*domain.Local, error) {
	a, err := s.authorize(ctx, permissions.LocaisRead)
	if err != nil {
		return nil, err
	}
	f := store.LocalFilter{Tipo: tipo, Search: q.Search}
	if q.CentralID != "" {
		f.CentralIDs = []string{q.CentralID}
	}
	if q.AlmoxarifadoID != "" {
		f.AlmoxarifadoIDs = []string{q.AlmoxarifadoID}
	}
	rows, err := s.Store.Locais().List(ctx, f)
	if err != nil {
		return nil, err
	}

	visible, err := s.visible(ctx, a)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, l := range rows {
		if visible.Contains(l.Tipo, l.ID) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Update rewrites a location. The actor must manage it before and after.
func (s *LocalService) Update(ctx context.Context, tipo domain.LocalTipo, id string, in LocalInput) (*domain.Local, error) {
	a, err := s.authorize(ctx, writeCapability(tipo))
	if err != nil {
		return nil, err
	}
	l, err := s.Store.Locais().Get(ctx, tipo, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanManageLocal(ctx, a, l)); err != nil {
		return nil, err
	}

	in.apply(l)
	if err := s.link(ctx, l); err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanManageLocal(ctx, a, l)); err != nil {
		return nil, err
	}
	if err := s.Store.Locais().Update(ctx, l); err != nil {
		return nil, err
	}

	s.logger.For(ctx).Info().Str("tipo", string(tipo)).Str("local_id", l.ID).Msg("local updated")
	return l, nil
}

// Delete removes a location without children or balances.
func (s *LocalService) Delete(ctx context.Context, tipo domain.LocalTipo, id string) error {
	a, err := s.authorize(ctx, writeCapability(tipo))
	if err != nil {
		return err
	}
	l, err := s.Store.Locais().Get(ctx, tipo, id)
	if err != nil {
		return err
	}
	if err := s.check(s.Policy.CanManageLocal(ctx, a, l)); err != nil {
		return err
	}

	inUse, err := s.inUse(ctx, l)
	if err != nil {
		return err
	}
	if inUse {
		return errors.ConflictWithKey("errors.local_em_uso", nil)
	}
	if err := s.Store.Locais().Delete(ctx, l.Tipo, l.ID); err != nil {
		return err
	}

	s.logger.For(ctx).Info().Str("tipo", string(tipo)).Str("local_id", l.ID).Msg("local deleted")
	return nil
}

func (s *LocalService) inUse(ctx context.Context, l *domain.Local) (bool, error) {
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
		found, err := s.Store.Locais().List(ctx, f)
		if err != nil {
			return false, err
		}
		if len(found) > 0 {
			return true, nil
		}
	}

	_, total, err := s.Store.Estoques().List(ctx, store.EstoqueFilter{
		Scope:      domain.UnrestrictedScope(),
		LocalTipo:  l.Tipo,
		LocalForms: forms,
		Page:       domain.Page{Page: 1, PerPage: 1},
	})
	return total > 0, err
}
