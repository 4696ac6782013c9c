package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
)

// AlertaRepository keeps at most one open alerta per balance, enforced by
// the alertas_abertos_key partial index.
type AlertaRepository struct{ base }

const openAlertaSQL = `INSERT INTO alertas (id, produto_id, local_tipo, local_id, central_id, status, quantidade_disponivel)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (produto_id, local_tipo, local_id) WHERE NOT resolvido DO UPDATE SET
	status                = EXCLUDED.status,
	quantidade_disponivel = EXCLUDED.quantidade_disponivel,
	central_id            = COALESCE(NULLIF(EXCLUDED.central_id, ''), alertas.central_id),
	updated_at            = NOW()
RETURNING *`

func (r *AlertaRepository) Open(ctx context.Context, a *domain.Alerta) error {
	return r.getRaw(ctx, a, "alerta", openAlertaSQL,
		uuid.New(), a.ProdutoID, a.LocalTipo, a.LocalID, a.CentralID, a.Status, a.QuantidadeDisponivel)
}

func resolveSet(query sq.UpdateBuilder, by string) sq.UpdateBuilder {
	return query.
		Set("resolvido", true).
		Set("resolvido_em", sq.Expr("NOW()")).
		Set("resolvido_por", by).
		Set("updated_at", sq.Expr("NOW()"))
}

func (r *AlertaRepository) ResolveFor(ctx context.Context, produtoID string, tipo domain.LocalTipo, localID, by string) error {
	query := resolveSet(psql.Update("alertas"), by).Where(sq.And{
		sq.Eq{"resolvido": false, "local_tipo": tipo},
		anyOf("produto_id", []string{produtoID}),
		anyOf("local_id", []string{localID}),
	})
	_, err := r.exec(ctx, query)
	return err
}

// Resolve is idempotent: an already resolved alerta is returned unchanged.
func (r *AlertaRepository) Resolve(ctx context.Context, id uuid.UUID, by string) (*domain.Alerta, error) {
	var a domain.Alerta
	query := resolveSet(psql.Update("alertas"), by).
		Where(sq.Eq{"id": id, "resolvido": false}).
		Suffix("RETURNING *")
	err := r.get(ctx, &a, query, "alerta")
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *AlertaRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Alerta, error) {
	var a domain.Alerta
	if err := r.get(ctx, &a, psql.Select("*").From("alertas").Where(sq.Eq{"id": id}), "alerta"); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertaRepository) List(ctx context.Context, f store.AlertaFilter) ([]*domain.Alerta, int64, error) {
	var resolvido, produto sq.Sqlizer
	if f.Resolvido != nil {
		resolvido = sq.Eq{"resolvido": *f.Resolvido}
	}
	if f.ProdutoID != "" {
		produto = anyOf("produto_id", []string{f.ProdutoID})
	}
	pred := where(alertaScope(f.Scope), resolvido, produto)

	total, err := r.count(ctx, "alertas", pred)
	if err != nil {
		return nil, 0, err
	}
	query := paged(psql.Select("*").From("alertas").Where(pred).OrderBy("updated_at DESC"), f.Page)
	var rows []*domain.Alerta
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
