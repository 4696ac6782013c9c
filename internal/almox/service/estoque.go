package service

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/policy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
)

// EstoqueService answers balance queries.
type EstoqueService struct {
	core
}

// NewEstoqueService creates a new estoque service
func NewEstoqueService(d Deps) *EstoqueService {
	return &EstoqueService{core: newCore(d, "estoque-service")}
}

// EstoqueView is a balance with its status and display names.
type EstoqueView struct {
	*domain.Estoque
	Status        domain.EstoqueStatus `json:"status"`
	ProdutoNome   string               `json:"produto_nome"`
	ProdutoCodigo string               `json:"produto_codigo"`
	Unidade       string               `json:"unidade,omitempty"`
	LocalNome     string               `json:"local_nome"`
}

// EstoqueQuery filters the hierarchy view. Produto matches name, code or
// any id form.
type EstoqueQuery struct {
	Produto   string
	LocalTipo domain.LocalTipo
	LocalID   string
	Status    domain.EstoqueStatus
	Page      domain.Page
}

// Hierarquia lists balances inside the actor's scope with names resolved.
func (s *EstoqueService) Hierarquia(ctx context.Context, q EstoqueQuery) ([]*EstoqueView, int64, error) {
	a, err := s.authorize(ctx, permissions.EstoqueRead)
	if err != nil {
		return nil, 0, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, errors.InvalidField("status", "validation.invalid")
	}
	if q.LocalTipo != "" && !q.LocalTipo.Valid() {
		return nil, 0, errors.InvalidField("tipo", "validation.invalid")
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, 0, err
	}

	f := store.EstoqueFilter{
		Scope:     scope,
		LocalTipo: q.LocalTipo,
		Status:    q.Status,
		LowRatio:  s.Ledger.Ratio(),
		Page:      q.Page,
	}
	if q.Produto != "" {
		matches, _, err := s.Store.Produtos().List(ctx, store.ProdutoFilter{Search: q.Produto})
		if err != nil {
			return nil, 0, err
		}
		if len(matches) == 0 {
			return []*EstoqueView{}, 0, nil
		}
		for _, p := range matches {
			f.ProdutoForms = append(f.ProdutoForms, p.AllForms()...)
		}
	}
	if f.LocalForms, err = s.localForms(ctx, q.LocalTipo, q.LocalID); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.Store.Estoques().List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, rows)
	return views, total, err
}

// Setor lists the balances of one setor.
func (s *EstoqueService) Setor(ctx context.Context, setorID string) ([]*EstoqueView, error) {
	return s.Local(ctx, domain.LocalSetor, setorID)
}

// Local lists the balances held at one location.
func (s *EstoqueService) Local(ctx context.Context, tipo domain.LocalTipo, id string) ([]*EstoqueView, error) {
	a, err := s.authorize(ctx, permissions.EstoqueRead)
	if err != nil {
		return nil, err
	}
	l, err := s.local(ctx, domain.LocalRef{Tipo: tipo, ID: id})
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(l.Tipo, l.ID) {
		return nil, policy.Deny(policy.ReasonLocal).Err()
	}

	rows, _, err := s.Store.Estoques().List(ctx, store.EstoqueFilter{
		Scope:      domain.UnrestrictedScope(),
		LocalTipo:  l.Tipo,
		LocalForms: l.Forms(),
		LowRatio:   s.Ledger.Ratio(),
	})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, rows)
}

// Origens lists the stock holding locations the actor may send from: every
// non setor location of its scope. operador_setor gets its setor's chain.
func (s *EstoqueService) Origens(ctx context.Context) ([]*domain.Local, error) {
	a, err := s.authorize(ctx, permissions.EstoqueRead)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}

	var out []*domain.Local
	for _, tipo := range []domain.LocalTipo{domain.LocalCentral, domain.LocalAlmoxarifado, domain.LocalSubAlmoxarifado} {
		if tipo == domain.LocalCentral && a.Role != actor.RoleSuperAdmin && a.Role != actor.RoleAdminCentral {
			continue
		}
		f := store.LocalFilter{Tipo: tipo}
		if !scope.Unrestricted {
			if f.IDs = scope.IDsFor(tipo); len(f.IDs) == 0 {
				continue
			}
		}
		rows, err := s.Store.Locais().List(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// views classifies rows and resolves product and location names in bulk.
func (s *EstoqueService) views(ctx context.Context, rows []*domain.Estoque) ([]*EstoqueView, error) {
	out := make([]*EstoqueView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	var produtoIDs []string
	locaisIDs := make(map[domain.LocalTipo][]string)
	for _, e := range rows {
		produtoIDs = append(produtoIDs, e.ProdutoID)
		locaisIDs[e.LocalTipo] = append(locaisIDs[e.LocalTipo], e.LocalID)
	}

	produtos, _, err := s.Store.Produtos().List(ctx, store.ProdutoFilter{IDs: identity.ExpandAll(produtoIDs...)})
	if err != nil {
		return nil, err
	}
	var locais []*domain.Local
	for tipo, ids := range locaisIDs {
		found, err := s.Store.Locais().List(ctx, store.LocalFilter{Tipo: tipo, IDs: identity.ExpandAll(ids...)})
		if err != nil {
			return nil, err
		}
		locais = append(locais, found...)
	}

	for _, e := range rows {
		v := &EstoqueView{Estoque: e, Status: s.Ledger.Classify(e), ProdutoNome: e.ProdutoID, LocalNome: e.LocalID}
		for _, p := range produtos {
			if p.Is(e.ProdutoID) || identity.Matches(p.Codigo, e.ProdutoID) {
				v.ProdutoNome, v.ProdutoCodigo, v.Unidade = p.Nome, p.Codigo, p.Unidade
				break
			}
		}
		for _, l := range locais {
			if l.Tipo == e.LocalTipo && l.Is(e.LocalID) {
				v.LocalNome = l.Nome
				break
			}
		}
		out = append(out, v)
	}
	return out, nil
}
