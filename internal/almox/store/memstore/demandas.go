package memstore

import (
	"context"
	"slices"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
)

type demandas struct{ s *Store }

func cloneDemanda(d domain.Demanda) *domain.Demanda {
	d.Items = slices.Clone(d.Items)
	d.Atendimentos = slices.Clone(d.Atendimentos)
	return &d
}

func (r demandas) Create(ctx context.Context, d *domain.Demanda) error {
	defer r.s.lock(ctx)()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := r.s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.s.st.demandas[d.ID] = *cloneDemanda(*d)
	return nil
}

func (r demandas) Get(ctx context.Context, id uuid.UUID) (*domain.Demanda, error) {
	defer r.s.lock(ctx)()

	d, ok := r.s.st.demandas[id]
	if !ok {
		return nil, errors.NotFound("demanda")
	}
	return cloneDemanda(d), nil
}

// GetForUpdate is Get; the store lock already serializes transactions.
func (r demandas) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Demanda, error) {
	return r.Get(ctx, id)
}

func (r demandas) List(ctx context.Context, f store.DemandaFilter) ([]*domain.Demanda, int64, error) {
	defer r.s.lock(ctx)()

	var rows []domain.Demanda
	for _, d := range r.s.st.demandas {
		if !f.Scope.MatchDemanda(&d) {
			continue
		}
		if f.SetorID != "" && !identity.Matches(f.SetorID, d.SetorID) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		rows = append(rows, d)
	}

	rows, total := page(rows, f.Page, func(a, b domain.Demanda) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	out := make([]*domain.Demanda, len(rows))
	for i := range rows {
		out[i] = cloneDemanda(rows[i])
	}
	return out, total, nil
}

func (r demandas) Update(ctx context.Context, d *domain.Demanda) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.demandas[d.ID]
	if !ok {
		return errors.NotFound("demanda")
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = r.s.now()
	r.s.st.demandas[d.ID] = *cloneDemanda(*d)
	return nil
}

func (r demandas) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.demandas[id]; !ok {
		return errors.NotFound("demanda")
	}
	delete(r.s.st.demandas, id)
	return nil
}

func (r demandas) CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.DemandaStatus]int64, error) {
	defer r.s.lock(ctx)()

	out := make(map[domain.DemandaStatus]int64)
	for _, d := range r.s.st.demandas {
		if scope.MatchDemanda(&d) {
			out[d.Status]++
		}
	}
	return out, nil
}
