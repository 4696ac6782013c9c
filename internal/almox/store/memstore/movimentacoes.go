package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/google/uuid"
)

type movimentacoes struct{ s *Store }

func (r movimentacoes) Append(ctx context.Context, m *domain.Movimentacao) error {
	defer r.s.lock(ctx)()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = r.s.now()
	if m.DataMovimentacao.IsZero() {
		m.DataMovimentacao = m.CreatedAt
	}
	r.s.st.movimentacoes = append(r.s.st.movimentacoes, *m)
	return nil
}

func (r movimentacoes) List(ctx context.Context, f store.MovimentacaoFilter) ([]*domain.Movimentacao, int64, error) {
	defer r.s.lock(ctx)()

	var tipos []domain.MovimentacaoTipo
	if f.Tipo != "" {
		tipos = f.Tipo.Family()
	}

	var rows []domain.Movimentacao
	for _, m := range r.s.st.movimentacoes {
		if !f.Scope.MatchMovimentacao(&m) {
			continue
		}
		if len(f.ProdutoForms) > 0 && !matchAny(f.ProdutoForms, m.ProdutoID) {
			continue
		}
		if tipos != nil && !slices.Contains(tipos, m.Tipo) {
			continue
		}
		if len(f.LocalForms) > 0 && !matchAny(f.LocalForms, m.OrigemID) && !matchAny(f.LocalForms, m.DestinoID) {
			continue
		}
		if f.From != nil && m.DataMovimentacao.Before(*f.From) {
			continue
		}
		if f.To != nil && m.DataMovimentacao.After(*f.To) {
			continue
		}
		rows = append(rows, m)
	}

	rows, total := page(rows, f.Page, func(a, b domain.Movimentacao) bool {
		if !a.DataMovimentacao.Equal(b.DataMovimentacao) {
			return a.DataMovimentacao.After(b.DataMovimentacao)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	out := make([]*domain.Movimentacao, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, total, nil
}

func (r movimentacoes) ExistsDistribuicao(ctx context.Context, produtoForms, origemForms, destinoForms []string) (bool, error) {
	defer r.s.lock(ctx)()

	for _, m := range r.s.st.movimentacoes {
		if (m.Tipo == domain.MovDistribuicao || m.Tipo == domain.MovTransferencia) &&
			matchAny(produtoForms, m.ProdutoID) &&
			matchAny(origemForms, m.OrigemID) &&
			matchAny(destinoForms, m.DestinoID) {
			return true, nil
		}
	}
	return false, nil
}

func (r movimentacoes) DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error) {
	defer r.s.lock(ctx)()

	kept := r.s.st.movimentacoes[:0:0]
	for _, m := range r.s.st.movimentacoes {
		if !matchAny(produtoForms, m.ProdutoID) {
			kept = append(kept, m)
		}
	}
	n := int64(len(r.s.st.movimentacoes) - len(kept))
	r.s.st.movimentacoes = kept
	return n, nil
}

func (r movimentacoes) CountSince(ctx context.Context, scope domain.Scope, since time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, m := range r.s.st.movimentacoes {
		if !m.DataMovimentacao.Before(since) && scope.MatchMovimentacao(&m) {
			n++
		}
	}
	return n, nil
}
