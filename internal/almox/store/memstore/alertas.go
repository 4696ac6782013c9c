package memstore

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
)

type alertas struct{ s *Store }

func (r alertas) open(produtoID string, tipo domain.LocalTipo, localID string) (domain.Alerta, bool) {
	for _, a := range r.s.st.alertas {
		if !a.Resolvido && a.LocalTipo == tipo &&
			identity.Matches(produtoID, a.ProdutoID) && identity.Matches(localID, a.LocalID) {
			return a, true
		}
	}
	return domain.Alerta{}, false
}

func (r alertas) Open(ctx context.Context, a *domain.Alerta) error {
	defer r.s.lock(ctx)()

	now := r.s.now()
	if existing, ok := r.open(a.ProdutoID, a.LocalTipo, a.LocalID); ok {
		existing.Status = a.Status
		existing.QuantidadeDisponivel = a.QuantidadeDisponivel
		if a.CentralID != "" {
			existing.CentralID = a.CentralID
		}
		existing.UpdatedAt = now
		r.s.st.alertas[existing.ID] = existing
		*a = existing
		return nil
	}

	a.ID = uuid.New()
	a.Resolvido = false
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.st.alertas[a.ID] = *a
	return nil
}

func (r alertas) ResolveFor(ctx context.Context, produtoID string, tipo domain.LocalTipo, localID, by string) error {
	defer r.s.lock(ctx)()

	a, ok := r.open(produtoID, tipo, localID)
	if !ok {
		return nil
	}
	r.resolve(&a, by)
	return nil
}

func (r alertas) resolve(a *domain.Alerta, by string) {
	now := r.s.now()
	a.Resolvido = true
	a.ResolvidoEm = ptr(now)
	a.ResolvidoPor = by
	a.UpdatedAt = now
	r.s.st.alertas[a.ID] = *a
}

func (r alertas) Resolve(ctx context.Context, id uuid.UUID, by string) (*domain.Alerta, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.st.alertas[id]
	if !ok {
		return nil, errors.NotFound("alerta")
	}
	if !a.Resolvido {
		r.resolve(&a, by)
	}
	return &a, nil
}

func (r alertas) Get(ctx context.Context, id uuid.UUID) (*domain.Alerta, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.st.alertas[id]
	if !ok {
		return nil, errors.NotFound("alerta")
	}
	return &a, nil
}

func (r alertas) List(ctx context.Context, f store.AlertaFilter) ([]*domain.Alerta, int64, error) {
	defer r.s.lock(ctx)()

	var rows []domain.Alerta
	for _, a := range r.s.st.alertas {
		if !f.Scope.MatchAlerta(&a) {
			continue
		}
		if f.Resolvido != nil && a.Resolvido != *f.Resolvido {
			continue
		}
		if f.ProdutoID != "" && !identity.Matches(f.ProdutoID, a.ProdutoID) {
			continue
		}
		rows = append(rows, a)
	}
	rows, total := page(rows, f.Page, func(a, b domain.Alerta) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	out := make([]*domain.Alerta, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, total, nil
}
