package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/google/uuid"
)

// DemandaRepository persists supply requests; items and fulfillments are JSONB.
type DemandaRepository struct{ base }

func (r *DemandaRepository) Create(ctx context.Context, d *domain.Demanda) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Items == nil {
		d.Items = domain.DemandaItems{}
	}
	if d.Atendimentos == nil {
		d.Atendimentos = domain.Atendimentos{}
	}
	query := psql.Insert("demandas").SetMap(map[string]any{
		"id":                  d.ID,
		"setor_id":            d.SetorID,
		"central_id":          d.CentralID,
		"almoxarifado_id":     d.AlmoxarifadoID,
		"sub_almoxarifado_id": d.SubAlmoxarifadoID,
		"destino_tipo":        d.DestinoTipo,
		"status":              d.Status,
		"items":               d.Items,
		"atendimentos":        d.Atendimentos,
		"observacoes":         d.Observacoes,
		"criado_por":          d.CriadoPor,
	}).Suffix("RETURNING *")
	return r.get(ctx, d, query, "demanda")
}

func (r *DemandaRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Demanda, error) {
	var d domain.Demanda
	if err := r.get(ctx, &d, psql.Select("*").From("demandas").Where(sq.Eq{"id": id}), "demanda"); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetForUpdate reads a demanda and locks its row until the surrounding
// transaction ends, so fulfillments of the same demanda run one at a time.
func (r *DemandaRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Demanda, error) {
	var d domain.Demanda
	query := psql.Select("*").From("demandas").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
	if err := r.get(ctx, &d, query, "demanda"); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DemandaRepository) List(ctx context.Context, f store.DemandaFilter) ([]*domain.Demanda, int64, error) {
	var setor, status sq.Sqlizer
	if f.SetorID != "" {
		setor = anyOf("setor_id", []string{f.SetorID})
	}
	if f.Status != "" {
		status = sq.Eq{"status": f.Status}
	}
	pred := where(demandaScope(f.Scope), setor, status)

	total, err := r.count(ctx, "demandas", pred)
	if err != nil {
		return nil, 0, err
	}
	query := paged(psql.Select("*").From("demandas").Where(pred).OrderBy("created_at DESC"), f.Page)
	var rows []*domain.Demanda
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update writes the mutable part: status, lines and fulfillment history.
func (r *DemandaRepository) Update(ctx context.Context, d *domain.Demanda) error {
	query := psql.Update("demandas").SetMap(map[string]any{
		"status":       d.Status,
		"items":        d.Items,
		"atendimentos": d.Atendimentos,
		"observacoes":  d.Observacoes,
		"updated_at":   sq.Expr("NOW()"),
	}).Where(sq.Eq{"id": d.ID}).Suffix("RETURNING *")
	return r.get(ctx, d, query, "demanda")
}

func (r *DemandaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, psql.Delete("demandas").Where(sq.Eq{"id": id}), "demanda")
}

func (r *DemandaRepository) CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.DemandaStatus]int64, error) {
	var rows []struct {
		Status domain.DemandaStatus `db:"status"`
		Total  int64                `db:"total"`
	}
	query := psql.Select("status", "COUNT(*) AS total").From("demandas").
		Where(where(demandaScope(scope))).
		GroupBy("status")
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, err
	}
	out := make(map[domain.DemandaStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
