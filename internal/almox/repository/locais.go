package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/lib/pq"
)

// LocalRepository persists every level of the hierarchy in one table.
type LocalRepository struct{ base }

func notFoundLocal(tipo domain.LocalTipo) error {
	if tipo == "" {
		return errors.NotFound("local")
	}
	return errors.NotFound(string(tipo))
}

func localColumns(l *domain.Local) map[string]any {
	subs := l.SubAlmoxarifadoIDs
	if subs == nil {
		subs = pq.StringArray{}
	}
	return map[string]any{
		"nome":                      l.Nome,
		"descricao":                 l.Descricao,
		"endereco":                  l.Endereco,
		"responsavel":               l.Responsavel,
		"email":                     l.Email,
		"central_id":                l.CentralID,
		"almoxarifado_id":           l.AlmoxarifadoID,
		"sub_almoxarifado_id":       l.SubAlmoxarifadoID,
		"sub_almoxarifado_ids":      subs,
		"can_receive_inter_central": l.CanReceiveInterCentral,
		"ativo":                     l.Ativo,
	}
}

func (r *LocalRepository) Create(ctx context.Context, l *domain.Local) error {
	l.Assign()
	cols := localColumns(l)
	cols["oid"] = l.OID
	cols["legacy_id"] = l.LegacyID
	cols["tipo"] = l.Tipo
	query := psql.Insert("locais").SetMap(cols).Suffix("RETURNING *")
	return r.get(ctx, l, query, string(l.Tipo))
}

func (r *LocalRepository) Get(ctx context.Context, tipo domain.LocalTipo, id string) (*domain.Local, error) {
	if strings.TrimSpace(id) == "" {
		return nil, notFoundLocal(tipo)
	}
	query := psql.Select("*").From("locais").Where(identityMatch(id))
	if tipo != "" {
		query = query.Where(sq.Eq{"tipo": tipo})
	}
	var l domain.Local
	if err := r.get(ctx, &l, query.OrderBy("created_at").Limit(1), ""); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, notFoundLocal(tipo)
		}
		return nil, err
	}
	return &l, nil
}

func (r *LocalRepository) List(ctx context.Context, f store.LocalFilter) ([]*domain.Local, error) {
	var ids sq.Sqlizer
	if len(f.IDs) > 0 {
		ids = identityMatch(f.IDs...)
	}
	var central, almox, subs, tipo, inter, search sq.Sqlizer
	if len(f.CentralIDs) > 0 {
		central = anyOf("central_id", f.CentralIDs)
	}
	if len(f.AlmoxarifadoIDs) > 0 {
		almox = anyOf("almoxarifado_id", f.AlmoxarifadoIDs)
	}
	if len(f.SubAlmoxarifadoIDs) > 0 {
		forms := pq.Array(identity.ExpandAll(f.SubAlmoxarifadoIDs...))
		subs = sq.Or{
			sq.Expr("sub_almoxarifado_id = ANY(?)", forms),
			sq.Expr("sub_almoxarifado_ids && ?::text[]", forms),
		}
	}
	if f.Tipo != "" {
		tipo = sq.Eq{"tipo": f.Tipo}
	}
	if f.InterCentral {
		inter = sq.Eq{"can_receive_inter_central": true}
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		search = sq.ILike{"nome": "%" + s + "%"}
	}

	query := psql.Select("*").From("locais").
		Where(where(tipo, ids, central, almox, subs, inter, search)).
		OrderBy("array_position(ARRAY['central','almoxarifado','sub_almoxarifado','setor'], tipo)", "nome")

	var rows []*domain.Local
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LocalRepository) Update(ctx context.Context, l *domain.Local) error {
	cols := localColumns(l)
	cols["updated_at"] = sq.Expr("NOW()")
	query := psql.Update("locais").SetMap(cols).
		Where(sq.Eq{"oid": l.OID, "tipo": l.Tipo}).
		Suffix("RETURNING *")
	if err := r.get(ctx, l, query, ""); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return notFoundLocal(l.Tipo)
		}
		return err
	}
	return nil
}

func (r *LocalRepository) Delete(ctx context.Context, tipo domain.LocalTipo, id string) error {
	l, err := r.Get(ctx, tipo, id)
	if err != nil {
		return err
	}
	return r.execOne(ctx, psql.Delete("locais").Where(sq.Eq{"oid": l.OID}), string(l.Tipo))
}
