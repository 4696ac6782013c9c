package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/google/uuid"
)

// LoteRepository persists product batches.
type LoteRepository struct{ base }

func loteColumns(l *domain.Lote) map[string]any {
	return map[string]any{
		"produto_id":         l.ProdutoID,
		"numero_lote":        l.NumeroLote,
		"quantidade_inicial": l.QuantidadeInicial,
		"quantidade_atual":   l.QuantidadeAtual,
		"data_validade":      l.DataValidade,
		"preco_unitario":     l.PrecoUnitario,
		"local_tipo":         l.LocalTipo,
		"local_id":           l.LocalID,
		"central_id":         l.CentralID,
		"nota_fiscal":        l.NotaFiscal,
	}
}

func (r *LoteRepository) Create(ctx context.Context, l *domain.Lote) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cols := loteColumns(l)
	cols["id"] = l.ID
	return r.get(ctx, l, psql.Insert("lotes").SetMap(cols).Suffix("RETURNING *"), "lote")
}

func (r *LoteRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Lote, error) {
	var l domain.Lote
	if err := r.get(ctx, &l, psql.Select("*").From("lotes").Where(sq.Eq{"id": id}), "lote"); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LoteRepository) FindByNumero(ctx context.Context, produtoForms []string, numero string) (*domain.Lote, error) {
	var l domain.Lote
	query := psql.Select("*").From("lotes").
		Where(anyOf("produto_id", produtoForms)).
		Where("UPPER(numero_lote) = UPPER(?)", numero).
		OrderBy("created_at").Limit(1)
	if err := r.get(ctx, &l, query, "lote"); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByProduto returns the batches that expire first at the top.
func (r *LoteRepository) ListByProduto(ctx context.Context, produtoForms []string) ([]*domain.Lote, error) {
	var rows []*domain.Lote
	query := psql.Select("*").From("lotes").
		Where(anyOf("produto_id", produtoForms)).
		OrderBy("data_validade ASC NULLS LAST", "created_at")
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LoteRepository) Update(ctx context.Context, l *domain.Lote) error {
	cols := loteColumns(l)
	cols["updated_at"] = sq.Expr("NOW()")
	query := psql.Update("lotes").SetMap(cols).Where(sq.Eq{"id": l.ID}).Suffix("RETURNING *")
	return r.get(ctx, l, query, "lote")
}

func (r *LoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, psql.Delete("lotes").Where(sq.Eq{"id": id}), "lote")
}
