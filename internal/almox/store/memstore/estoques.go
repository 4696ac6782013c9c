package memstore

import (
	"context"
	"slices"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type estoques struct{ s *Store }

func (r estoques) find(p store.Placement) (domain.Estoque, bool) {
	var (
		found domain.Estoque
		ok    bool
	)
	for _, e := range r.s.st.estoques {
		if e.LocalTipo != p.LocalTipo || !matchAny(p.ProdutoForms, e.ProdutoID) || !matchAny(p.LocalForms, e.LocalID) {
			continue
		}
		// Oldest row wins when legacy duplicates exist.
		if !ok || e.CreatedAt.Before(found.CreatedAt) {
			found, ok = e, true
		}
	}
	return found, ok
}

func fillLinks(e *domain.Estoque, c domain.Chain) {
	if c.CentralID != "" {
		e.CentralID = c.CentralID
	}
	if c.AlmoxarifadoID != "" {
		e.AlmoxarifadoID = c.AlmoxarifadoID
	}
	if c.SubAlmoxarifadoID != "" {
		e.SubAlmoxarifadoID = c.SubAlmoxarifadoID
	}
	if c.SetorID != "" {
		e.SetorID = c.SetorID
	}
}

func (r estoques) Credit(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	defer r.s.lock(ctx)()

	now := r.s.now()
	e, ok := r.find(p)
	if !ok {
		e = domain.Estoque{
			ID:        uuid.New(),
			ProdutoID: p.ProdutoID,
			LocalTipo: p.LocalTipo,
			LocalID:   p.LocalID,
			CreatedAt: now,
		}
	}
	e.Quantidade = e.Quantidade.Add(amount)
	e.QuantidadeDisponivel = e.QuantidadeDisponivel.Add(amount)
	e.QuantidadeInicial = e.Quantidade
	fillLinks(&e, p.Links)
	e.UpdatedAt = now

	r.s.st.estoques[e.ID] = e
	return &e, nil
}

func (r estoques) Debit(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	defer r.s.lock(ctx)()

	e, ok := r.find(p)
	if !ok {
		return nil, errors.InsufficientBalance("0", amount.String())
	}
	if e.QuantidadeDisponivel.LessThan(amount) {
		return nil, errors.InsufficientBalance(e.QuantidadeDisponivel.String(), amount.String())
	}
	e.Quantidade = e.Quantidade.Sub(amount)
	e.QuantidadeDisponivel = e.QuantidadeDisponivel.Sub(amount)
	e.UpdatedAt = r.s.now()

	r.s.st.estoques[e.ID] = e
	return &e, nil
}

func (r estoques) DebitClamped(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	defer r.s.lock(ctx)()

	e, ok := r.find(p)
	if !ok {
		return nil, errors.NotFound("estoque")
	}
	take := decimal.Min(amount, e.QuantidadeDisponivel)
	if take.IsNegative() {
		take = decimal.Zero
	}
	e.Quantidade = e.Quantidade.Sub(take)
	e.QuantidadeDisponivel = e.QuantidadeDisponivel.Sub(take)
	e.UpdatedAt = r.s.now()

	r.s.st.estoques[e.ID] = e
	return &e, nil
}

func (r estoques) Find(ctx context.Context, p store.Placement) (*domain.Estoque, error) {
	defer r.s.lock(ctx)()

	e, ok := r.find(p)
	if !ok {
		return nil, errors.NotFound("estoque")
	}
	return &e, nil
}

func (r estoques) List(ctx context.Context, f store.EstoqueFilter) ([]*domain.Estoque, int64, error) {
	defer r.s.lock(ctx)()

	ratio := f.LowRatio
	if !ratio.IsPositive() {
		ratio = domain.DefaultLowStockRatio
	}

	var rows []domain.Estoque
	for _, e := range r.s.st.estoques {
		if !f.Scope.MatchEstoque(&e) {
			continue
		}
		if len(f.ProdutoForms) > 0 && !matchAny(f.ProdutoForms, e.ProdutoID) {
			continue
		}
		if f.LocalTipo != "" && e.LocalTipo != f.LocalTipo {
			continue
		}
		if len(f.LocalForms) > 0 && !matchAny(f.LocalForms, e.LocalID) {
			continue
		}
		if f.Status != "" && domain.Classify(e, ratio) != f.Status {
			continue
		}
		rows = append(rows, e)
	}

	rows, total := page(rows, f.Page, func(a, b domain.Estoque) bool {
		if a.ProdutoID != b.ProdutoID {
			return a.ProdutoID < b.ProdutoID
		}
		if a.LocalTipo != b.LocalTipo {
			return slices.Index(domain.LocalTipos, a.LocalTipo) < slices.Index(domain.LocalTipos, b.LocalTipo)
		}
		return a.LocalID < b.LocalID
	})
	out := make([]*domain.Estoque, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, total, nil
}

func (r estoques) DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, e := range r.s.st.estoques {
		if matchAny(produtoForms, e.ProdutoID) {
			delete(r.s.st.estoques, id)
			n++
		}
	}
	return n, nil
}
