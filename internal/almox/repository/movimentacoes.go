package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MovimentacaoRepository is the append-only movement log.
type MovimentacaoRepository struct{ base }

func (r *MovimentacaoRepository) Append(ctx context.Context, m *domain.Movimentacao) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	data := any(sq.Expr("NOW()"))
	if !m.DataMovimentacao.IsZero() {
		data = m.DataMovimentacao
	}
	query := psql.Insert("movimentacoes").SetMap(map[string]any{
		"id":                  m.ID,
		"produto_id":          m.ProdutoID,
		"tipo":                m.Tipo,
		"quantidade":          m.Quantidade,
		"data_movimentacao":   data,
		"origem_tipo":         m.OrigemTipo,
		"origem_id":           m.OrigemID,
		"origem_nome":         m.OrigemNome,
		"destino_tipo":        m.DestinoTipo,
		"destino_id":          m.DestinoID,
		"destino_nome":        m.DestinoNome,
		"central_id":          m.CentralID,
		"usuario_id":          m.UsuarioID,
		"usuario_responsavel": m.UsuarioResponsavel,
		"nota_fiscal":         m.NotaFiscal,
		"lote":                m.Lote,
		"observacoes":         m.Observacoes,
		"justificativa":       m.Justificativa,
		"demanda_id":          m.DemandaID,
	}).Suffix("RETURNING *")
	return r.get(ctx, m, query, "movimentacao")
}

func movimentacaoPredicate(f store.MovimentacaoFilter) sq.And {
	var produto, tipo, local, from, to sq.Sqlizer
	if len(f.ProdutoForms) > 0 {
		produto = anyOf("produto_id", f.ProdutoForms)
	}
	if f.Tipo != "" {
		var tipos []string
		for _, t := range f.Tipo.Family() {
			tipos = append(tipos, string(t))
		}
		tipo = sq.Expr("tipo = ANY(?)", pq.Array(tipos))
	}
	if len(f.LocalForms) > 0 {
		local = sq.Or{anyOf("origem_id", f.LocalForms), anyOf("destino_id", f.LocalForms)}
	}
	if f.From != nil {
		from = sq.GtOrEq{"data_movimentacao": *f.From}
	}
	if f.To != nil {
		to = sq.LtOrEq{"data_movimentacao": *f.To}
	}
	return where(movimentacaoScope(f.Scope), produto, tipo, local, from, to)
}

func (r *MovimentacaoRepository) List(ctx context.Context, f store.MovimentacaoFilter) ([]*domain.Movimentacao, int64, error) {
	pred := movimentacaoPredicate(f)
	total, err := r.count(ctx, "movimentacoes", pred)
	if err != nil {
		return nil, 0, err
	}
	query := paged(psql.Select("*").From("movimentacoes").Where(pred).
		OrderBy("data_movimentacao DESC", "created_at DESC"), f.Page)
	var rows []*domain.Movimentacao
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *MovimentacaoRepository) ExistsDistribuicao(ctx context.Context, produtoForms, origemForms, destinoForms []string) (bool, error) {
	var exists bool
	query := psql.Select().Column(sq.Expr("EXISTS (?)",
		psql.Select("1").From("movimentacoes").Where(sq.And{
			sq.Eq{"tipo": []string{string(domain.MovDistribuicao), string(domain.MovTransferencia)}},
			anyOf("produto_id", produtoForms),
			anyOf("origem_id", origemForms),
			anyOf("destino_id", destinoForms),
		})))
	if err := r.get(ctx, &exists, query, "movimentacao"); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *MovimentacaoRepository) DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error) {
	return r.exec(ctx, psql.Delete("movimentacoes").Where(anyOf("produto_id", produtoForms)))
}

func (r *MovimentacaoRepository) CountSince(ctx context.Context, scope domain.Scope, since time.Time) (int64, error) {
	return r.count(ctx, "movimentacoes", where(movimentacaoScope(scope), sq.GtOrEq{"data_movimentacao": since}))
}
