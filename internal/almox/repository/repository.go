// Package repository implements store.Store on Postgres with sqlx. Dynamic
// filters are built with squirrel; every call runs on the transaction
// carried by ctx when there is one.
package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/database"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the Postgres store.Store.
type Store struct {
	db            *database.DB
	locais        *LocalRepository
	categorias    *CategoriaRepository
	produtos      *ProdutoRepository
	estoques      *EstoqueRepository
	movimentacoes *MovimentacaoRepository
	lotes         *LoteRepository
	demandas      *DemandaRepository
	usuarios      *UsuarioRepository
	alertas       *AlertaRepository
}

var _ store.Store = (*Store)(nil)

// New creates the Postgres store.
func New(db *database.DB) *Store {
	b := base{db: db}
	return &Store{
		db:            db,
		locais:        &LocalRepository{b},
		categorias:    &CategoriaRepository{b},
		produtos:      &ProdutoRepository{b},
		estoques:      &EstoqueRepository{b},
		movimentacoes: &MovimentacaoRepository{b},
		lotes:         &LoteRepository{b},
		demandas:      &DemandaRepository{b},
		usuarios:      &UsuarioRepository{b},
		alertas:       &AlertaRepository{b},
	}
}

func (s *Store) Locais() store.LocalStore               { return s.locais }
func (s *Store) Categorias() store.CategoriaStore       { return s.categorias }
func (s *Store) Produtos() store.ProdutoStore           { return s.produtos }
func (s *Store) Estoques() store.EstoqueStore           { return s.estoques }
func (s *Store) Movimentacoes() store.MovimentacaoStore { return s.movimentacoes }
func (s *Store) Lotes() store.LoteStore                 { return s.lotes }
func (s *Store) Demandas() store.DemandaStore           { return s.demandas }
func (s *Store) Usuarios() store.UsuarioStore           { return s.usuarios }
func (s *Store) Alertas() store.AlertaStore             { return s.alertas }

// WithinTx runs fn in one database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.RunInTx(ctx, fn)
}

type base struct {
	db *database.DB
}

// get scans one row; no row becomes NotFound(resource).
func (b base) get(ctx context.Context, dest any, query sq.Sqlizer, resource string) error {
	text, args, err := query.ToSql()
	if err != nil {
		return err
	}
	return b.getRaw(ctx, dest, resource, text, args...)
}

// getRaw is get for hand written statements.
func (b base) getRaw(ctx context.Context, dest any, resource, text string, args ...any) error {
	if err := b.db.Querier(ctx).GetContext(ctx, dest, text, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NotFound(resource)
		}
		return database.Translate(err)
	}
	return nil
}

func (b base) selectRows(ctx context.Context, dest any, query sq.Sqlizer) error {
	text, args, err := query.ToSql()
	if err != nil {
		return err
	}
	return database.Translate(b.db.Querier(ctx).SelectContext(ctx, dest, text, args...))
}

func (b base) exec(ctx context.Context, query sq.Sqlizer) (int64, error) {
	text, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := b.db.Querier(ctx).ExecContext(ctx, text, args...)
	if err != nil {
		return 0, database.Translate(err)
	}
	return res.RowsAffected()
}

// execOne is exec that reports NotFound(resource) when nothing changed.
func (b base) execOne(ctx context.Context, query sq.Sqlizer, resource string) error {
	n, err := b.exec(ctx, query)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}

func (b base) count(ctx context.Context, table string, where sq.Sqlizer) (int64, error) {
	var n int64
	query := psql.Select("COUNT(*)").From(table)
	if where != nil {
		query = query.Where(where)
	}
	if err := b.get(ctx, &n, query, table); err != nil {
		return 0, err
	}
	return n, nil
}

func paged(query sq.SelectBuilder, p domain.Page) sq.SelectBuilder {
	if p.PerPage > 0 {
		query = query.Limit(uint64(p.PerPage)).Offset(uint64(p.Offset()))
	}
	return query
}

// anyOf matches col against every identity form of ids.
func anyOf(col string, ids []string) sq.Sqlizer {
	return sq.Expr(col+" = ANY(?)", pq.Array(identity.ExpandAll(ids...)))
}

// identityMatch matches a row of a multi-scheme table by canonical id or oid.
func identityMatch(ids ...string) sq.Sqlizer {
	forms := pq.Array(identity.ExpandAll(ids...))
	return sq.Or{sq.Expr("id = ANY(?)", forms), sq.Expr("oid::text = ANY(?)", forms)}
}

// where ANDs the non-nil predicates.
func where(preds ...sq.Sqlizer) sq.And {
	out := sq.And{}
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
