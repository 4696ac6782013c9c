package memstore

import (
	"context"
	"strings"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
)

type lotes struct{ s *Store }

func (r lotes) duplicate(l *domain.Lote) bool {
	for _, existing := range r.s.st.lotes {
		if existing.ID != l.ID &&
			matchAny([]string{l.ProdutoID}, existing.ProdutoID) &&
			strings.EqualFold(existing.NumeroLote, l.NumeroLote) {
			return true
		}
	}
	return false
}

func (r lotes) Create(ctx context.Context, l *domain.Lote) error {
	defer r.s.lock(ctx)()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if r.duplicate(l) {
		return errors.ConflictWithKey("errors.lote_duplicado", map[string]string{"numero_lote": l.NumeroLote})
	}
	now := r.s.now()
	l.CreatedAt, l.UpdatedAt = now, now
	r.s.st.lotes[l.ID] = *l
	return nil
}

func (r lotes) Get(ctx context.Context, id uuid.UUID) (*domain.Lote, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.st.lotes[id]
	if !ok {
		return nil, errors.NotFound("lote")
	}
	return &l, nil
}

func (r lotes) FindByNumero(ctx context.Context, produtoForms []string, numero string) (*domain.Lote, error) {
	defer r.s.lock(ctx)()

	for _, l := range r.s.st.lotes {
		if matchAny(produtoForms, l.ProdutoID) && strings.EqualFold(l.NumeroLote, numero) {
			return &l, nil
		}
	}
	return nil, errors.NotFound("lote")
}

func (r lotes) ListByProduto(ctx context.Context, produtoForms []string) ([]*domain.Lote, error) {
	defer r.s.lock(ctx)()

	var rows []domain.Lote
	for _, l := range r.s.st.lotes {
		if matchAny(produtoForms, l.ProdutoID) {
			rows = append(rows, l)
		}
	}
	rows, _ = page(rows, domain.Page{}, func(a, b domain.Lote) bool {
		switch {
		case a.DataValidade == nil:
			return false
		case b.DataValidade == nil:
			return true
		}
		return a.DataValidade.Before(*b.DataValidade)
	})
	out := make([]*domain.Lote, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r lotes) Update(ctx context.Context, l *domain.Lote) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.lotes[l.ID]
	if !ok {
		return errors.NotFound("lote")
	}
	if r.duplicate(l) {
		return errors.ConflictWithKey("errors.lote_duplicado", map[string]string{"numero_lote": l.NumeroLote})
	}
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = r.s.now()
	r.s.st.lotes[l.ID] = *l
	return nil
}

func (r lotes) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.lotes[id]; !ok {
		return errors.NotFound("lote")
	}
	delete(r.s.st.lotes, id)
	return nil
}
