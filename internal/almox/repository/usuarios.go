package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/lib/pq"
)

// UsuarioRepository persists accounts.
type UsuarioRepository struct{ base }

func usuarioColumns(u *domain.Usuario) map[string]any {
	categorias := u.CategoriaIDs
	if categorias == nil {
		categorias = pq.StringArray{}
	}
	return map[string]any{
		"nome":          u.Nome,
		"email":         strings.TrimSpace(u.Email),
		"username":      strings.TrimSpace(u.Username),
		"role":          u.Role,
		"scope_id":      u.ScopeID,
		"categoria_ids": categorias,
		"ativo":         u.Ativo,
	}
}

func (r *UsuarioRepository) Create(ctx context.Context, u *domain.Usuario) error {
	u.Assign()
	cols := usuarioColumns(u)
	cols["oid"] = u.OID
	cols["legacy_id"] = u.LegacyID
	cols["senha_hash"] = u.SenhaHash
	return r.get(ctx, u, psql.Insert("usuarios").SetMap(cols).Suffix("RETURNING *"), "usuario")
}

func (r *UsuarioRepository) Get(ctx context.Context, id string) (*domain.Usuario, error) {
	var u domain.Usuario
	query := psql.Select("*").From("usuarios").Where(identityMatch(id)).Limit(1)
	if err := r.get(ctx, &u, query, "usuario"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsuarioRepository) GetByLogin(ctx context.Context, login string) (*domain.Usuario, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	var u domain.Usuario
	query := psql.Select("*").From("usuarios").
		Where(sq.Or{
			sq.Eq{"LOWER(email)": login},
			sq.And{sq.NotEq{"username": ""}, sq.Eq{"LOWER(username)": login}},
		}).
		Limit(1)
	if err := r.get(ctx, &u, query, "usuario"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsuarioRepository) List(ctx context.Context, f store.UsuarioFilter) ([]*domain.Usuario, error) {
	var role, scope, search sq.Sqlizer
	if f.Role != "" {
		role = sq.Eq{"role": f.Role}
	}
	if f.ScopeIDs != nil {
		scope = anyOf("scope_id", f.ScopeIDs)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		search = sq.Or{sq.ILike{"nome": like}, sq.ILike{"email": like}, sq.ILike{"username": like}}
	}
	var rows []*domain.Usuario
	query := psql.Select("*").From("usuarios").Where(where(role, scope, search)).OrderBy("nome")
	if err := r.selectRows(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update keeps the stored hash when SenhaHash is empty.
func (r *UsuarioRepository) Update(ctx context.Context, u *domain.Usuario) error {
	cols := usuarioColumns(u)
	cols["updated_at"] = sq.Expr("NOW()")
	if u.SenhaHash != "" {
		cols["senha_hash"] = u.SenhaHash
	}
	query := psql.Update("usuarios").SetMap(cols).Where(sq.Eq{"oid": u.OID}).Suffix("RETURNING *")
	return r.get(ctx, u, query, "usuario")
}

func (r *UsuarioRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, psql.Delete("usuarios").Where(identityMatch(id)), "usuario")
}

func (r *UsuarioRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	query := psql.Update("usuarios").Set("last_login_at", at).Where(identityMatch(id))
	return r.execOne(ctx, query, "usuario")
}
