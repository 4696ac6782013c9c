package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// EstoqueRepository keeps one balance row per product and location.
type EstoqueRepository struct{ base }

// placementRow selects the oldest row a placement addresses. Legacy data
// may hold duplicates written under different id forms.
const placementRow = `SELECT id FROM estoques
	WHERE produto_id = ANY($1) AND local_tipo = $2 AND local_id = ANY($3)
	ORDER BY created_at LIMIT 1`

// Credit refreshes the links only where the resolved chain has them.
const creditSQL = `UPDATE estoques SET
	quantidade            = quantidade + $4,
	quantidade_disponivel = quantidade_disponivel + $4,
	quantidade_inicial    = quantidade + $4,
	central_id            = COALESCE(NULLIF($5, ''), central_id),
	almoxarifado_id       = COALESCE(NULLIF($6, ''), almoxarifado_id),
	sub_almoxarifado_id   = COALESCE(NULLIF($7, ''), sub_almoxarifado_id),
	setor_id              = COALESCE(NULLIF($8, ''), setor_id),
	updated_at            = NOW()
WHERE id = (` + placementRow + ` FOR UPDATE)
RETURNING *`

const insertSQL = `INSERT INTO estoques (
	id, produto_id, local_tipo, local_id,
	quantidade, quantidade_disponivel, quantidade_inicial,
	central_id, almoxarifado_id, sub_almoxarifado_id, setor_id
) VALUES ($1, $2, $3, $4, $5, $5, $5, $6, $7, $8, $9)
ON CONFLICT (produto_id, local_tipo, local_id) DO UPDATE SET
	quantidade            = estoques.quantidade + EXCLUDED.quantidade,
	quantidade_disponivel = estoques.quantidade_disponivel + EXCLUDED.quantidade,
	quantidade_inicial    = estoques.quantidade + EXCLUDED.quantidade,
	updated_at            = NOW()
RETURNING *`

// debitSQL is the conditional decrement: the row is only touched when it
// still covers the amount after acquiring its lock.
const debitSQL = `UPDATE estoques SET
	quantidade            = quantidade - $4,
	quantidade_disponivel = quantidade_disponivel - $4,
	updated_at            = NOW()
WHERE id = (` + placementRow + `)
	AND quantidade_disponivel >= $4
RETURNING *`

const debitClampedSQL = `UPDATE estoques SET
	quantidade            = GREATEST(quantidade - LEAST($4, quantidade_disponivel), 0),
	quantidade_disponivel = GREATEST(quantidade_disponivel - $4, 0),
	updated_at            = NOW()
WHERE id = (` + placementRow + `)
RETURNING *`

func placementArgs(p store.Placement) []any {
	return []any{
		pq.Array(identity.ExpandAll(p.ProdutoForms...)),
		p.LocalTipo,
		pq.Array(identity.ExpandAll(p.LocalForms...)),
	}
}

func (r *EstoqueRepository) Credit(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	var e domain.Estoque
	args := append(placementArgs(p), amount,
		p.Links.CentralID, p.Links.AlmoxarifadoID, p.Links.SubAlmoxarifadoID, p.Links.SetorID)
	err := r.getRaw(ctx, &e, "estoque", creditSQL, args...)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	err = r.getRaw(ctx, &e, "estoque", insertSQL,
		uuid.New(), p.ProdutoID, p.LocalTipo, p.LocalID, amount,
		p.Links.CentralID, p.Links.AlmoxarifadoID, p.Links.SubAlmoxarifadoID, p.Links.SetorID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EstoqueRepository) Debit(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	var e domain.Estoque
	err := r.getRaw(ctx, &e, "estoque", debitSQL, append(placementArgs(p), amount)...)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	available := "0"
	if current, ferr := r.Find(ctx, p); ferr == nil {
		available = current.QuantidadeDisponivel.String()
	} else if !errors.Is(ferr, errors.ErrNotFound) {
		return nil, ferr
	}
	return nil, errors.InsufficientBalance(available, amount.String())
}

func (r *EstoqueRepository) DebitClamped(ctx context.Context, p store.Placement, amount decimal.Decimal) (*domain.Estoque, error) {
	var e domain.Estoque
	if err := r.getRaw(ctx, &e, "estoque", debitClampedSQL, append(placementArgs(p), amount)...); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EstoqueRepository) Find(ctx context.Context, p store.Placement) (*domain.Estoque, error) {
	var e domain.Estoque
	err := r.getRaw(ctx, &e, "estoque",
		`SELECT * FROM estoques WHERE id = (`+placementRow+`)`, placementArgs(p)...)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// statusPredicate mirrors domain.Classify.
func statusPredicate(status domain.EstoqueStatus, ratio decimal.Decimal) sq.Sqlizer {
	const baseline = "(CASE WHEN quantidade_inicial > 0 THEN quantidade_inicial ELSE quantidade END)"
	switch status {
	case domain.StatusZerado:
		return sq.Expr("quantidade_disponivel <= 0")
	case domain.StatusBaixo:
		return sq.Expr("quantidade_disponivel > 0 AND quantidade_disponivel <= "+baseline+" * ?", ratio)
	case domain.StatusNormal:
		return sq.Expr("quantidade_disponivel > 0 AND quantidade_disponivel > "+baseline+" * ?", ratio)
	}
	return nil
}

func (r *EstoqueRepository) List(ctx context.Context, f store.EstoqueFilter) ([]*domain.Estoque, int64, error) {
	ratio := f.LowRatio
	if !ratio.IsPositive() {
		ratio = domain.DefaultLowStockRatio
	}
	var produto, tipo, local sq.Sqlizer
	if len(f.ProdutoForms) > 0 {
		produto = anyOf("produto_id", f.ProdutoForms)
	}
	if f.LocalTipo != "" {
		tipo = sq.Eq{"local_tipo": f.LocalTipo}
	}
	if len(f.LocalForms) > 0 {
		local = anyOf("local_id", f.LocalForms)
	}
	pred := where(estoqueScope(f.Scope), produto, tipo, local, statusPredicate(f.Status, ratio))

	total, err := r.count(ctx, "estoques", pred)
	if err != nil {
		return nil, 0, err
	}
	query := paged(psql.Select("*").From("estoques").Where(pred).
		OrderBy("produto_id",
			"array_position(ARRAY['central','almoxarifado','sub_almoxarifado','setor'], local_tipo)",
			"local_id"), f.Page)
	var rows []*domain.Estoque
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *EstoqueRepository) DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error) {
	return r.exec(ctx, psql.Delete("estoques").Where(anyOf("produto_id", produtoForms)))
}
