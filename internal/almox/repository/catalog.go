package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

// CategoriaRepository persists product categories.
type CategoriaRepository struct{ base }

func (r *CategoriaRepository) Create(ctx context.Context, c *domain.Categoria) error {
	c.Assign()
	query := psql.Insert("categorias").SetMap(map[string]any{
		"oid":       c.OID,
		"legacy_id": c.LegacyID,
		"nome":      c.Nome,
		"descricao": c.Descricao,
		"ativo":     c.Ativo,
	}).Suffix("RETURNING *")
	return r.get(ctx, c, query, "categoria")
}

func (r *CategoriaRepository) Get(ctx context.Context, id string) (*domain.Categoria, error) {
	var c domain.Categoria
	query := psql.Select("*").From("categorias").Where(identityMatch(id)).Limit(1)
	if err := r.get(ctx, &c, query, "categoria"); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoriaRepository) List(ctx context.Context) ([]*domain.Categoria, error) {
	var rows []*domain.Categoria
	if err := r.selectRows(ctx, &rows, psql.Select("*").From("categorias").OrderBy("nome")); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CategoriaRepository) Update(ctx context.Context, c *domain.Categoria) error {
	query := psql.Update("categorias").SetMap(map[string]any{
		"nome":       c.Nome,
		"descricao":  c.Descricao,
		"ativo":      c.Ativo,
		"updated_at": sq.Expr("NOW()"),
	}).Where(sq.Eq{"oid": c.OID}).Suffix("RETURNING *")
	return r.get(ctx, c, query, "categoria")
}

func (r *CategoriaRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, psql.Delete("categorias").Where(identityMatch(id)), "categoria")
}

// ProdutoRepository persists the catalog.
type ProdutoRepository struct{ base }

func (r *ProdutoRepository) Create(ctx context.Context, p *domain.Produto) error {
	p.Assign()
	query := psql.Insert("produtos").SetMap(map[string]any{
		"oid":          p.OID,
		"legacy_id":    p.LegacyID,
		"nome":         p.Nome,
		"codigo":       p.Codigo,
		"unidade":      p.Unidade,
		"descricao":    p.Descricao,
		"categoria_id": p.CategoriaID,
		"central_id":   p.CentralID,
		"observacoes":  p.Observacoes,
		"ativo":        p.Ativo,
	}).Suffix("RETURNING *")
	return r.get(ctx, p, query, "produto")
}

// Get prefers an id match over a code match.
func (r *ProdutoRepository) Get(ctx context.Context, id string) (*domain.Produto, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NotFound("produto")
	}
	var p domain.Produto
	query := psql.Select("*").From("produtos").
		Where(sq.Or{identityMatch(id), sq.Expr("UPPER(codigo) = UPPER(?)", id)}).
		OrderByClause("UPPER(codigo) = UPPER(?)", id).
		OrderBy("created_at").
		Limit(1)
	if err := r.get(ctx, &p, query, "produto"); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProdutoRepository) List(ctx context.Context, f store.ProdutoFilter) ([]*domain.Produto, int64, error) {
	var central, categoria, ids, search sq.Sqlizer
	if f.CentralID != "" {
		central = anyOf("central_id", []string{f.CentralID})
	}
	if f.CategoriaID != "" {
		categoria = anyOf("categoria_id", []string{f.CategoriaID})
	}
	if len(f.IDs) > 0 {
		ids = identityMatch(f.IDs...)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		search = sq.Or{sq.ILike{"nome": like}, sq.ILike{"codigo": like}, identityMatch(s)}
	}
	pred := where(central, categoria, ids, search)

	total, err := r.count(ctx, "produtos", pred)
	if err != nil {
		return nil, 0, err
	}
	query := paged(psql.Select("*").From("produtos").Where(pred).OrderBy("nome", "codigo"), f.Page)
	var rows []*domain.Produto
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update never rewrites codigo.
func (r *ProdutoRepository) Update(ctx context.Context, p *domain.Produto) error {
	query := psql.Update("produtos").SetMap(map[string]any{
		"nome":         p.Nome,
		"unidade":      p.Unidade,
		"descricao":    p.Descricao,
		"categoria_id": p.CategoriaID,
		"central_id":   p.CentralID,
		"observacoes":  p.Observacoes,
		"ativo":        p.Ativo,
		"updated_at":   sq.Expr("NOW()"),
	}).Where(sq.Eq{"oid": p.OID}).Suffix("RETURNING *")
	return r.get(ctx, p, query, "produto")
}

func (r *ProdutoRepository) Delete(ctx context.Context, id string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.execOne(ctx, psql.Delete("produtos").Where(sq.Eq{"oid": p.OID}), "produto")
}

func (r *ProdutoRepository) AppendObservacao(ctx context.Context, id, line string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	query := psql.Update("produtos").
		Set("observacoes", sq.Expr("CASE WHEN observacoes = '' THEN ? ELSE observacoes || E'\\n' || ? END", line, line)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"oid": p.OID})
	return r.execOne(ctx, query, "produto")
}

func (r *ProdutoRepository) CodigosWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	query := psql.Select("codigo").From("produtos").
		Where(sq.Like{"UPPER(codigo)": strings.ToUpper(prefix) + "%"}).
		OrderBy("codigo")
	if err := r.selectRows(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
