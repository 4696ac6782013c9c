package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

type categorias struct{ s *Store }

func (r categorias) find(id string) (domain.Categoria, bool) {
	for _, c := range r.s.st.categorias {
		if c.Is(id) {
			return c, true
		}
	}
	return domain.Categoria{}, false
}

func (r categorias) Create(ctx context.Context, c *domain.Categoria) error {
	defer r.s.lock(ctx)()

	c.Assign()
	if _, dup := r.find(c.ID); dup {
		return errors.ConflictWithKey("errors.registro_duplicado", nil)
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.st.categorias[c.OID] = *c
	return nil
}

func (r categorias) Get(ctx context.Context, id string) (*domain.Categoria, error) {
	defer r.s.lock(ctx)()

	c, ok := r.find(id)
	if !ok {
		return nil, errors.NotFound("categoria")
	}
	return &c, nil
}

func (r categorias) List(ctx context.Context) ([]*domain.Categoria, error) {
	defer r.s.lock(ctx)()

	rows := make([]domain.Categoria, 0, len(r.s.st.categorias))
	for _, c := range r.s.st.categorias {
		rows = append(rows, c)
	}
	rows, _ = page(rows, domain.Page{}, func(a, b domain.Categoria) bool { return a.Nome < b.Nome })
	out := make([]*domain.Categoria, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (r categorias) Update(ctx context.Context, c *domain.Categoria) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.categorias[c.OID]
	if !ok {
		return errors.NotFound("categoria")
	}
	c.Identity = existing.Identity
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = r.s.now()
	r.s.st.categorias[c.OID] = *c
	return nil
}

func (r categorias) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	c, ok := r.find(id)
	if !ok {
		return errors.NotFound("categoria")
	}
	delete(r.s.st.categorias, c.OID)
	return nil
}

type produtos struct{ s *Store }

func (r produtos) find(id string) (domain.Produto, bool) {
	id = strings.TrimSpace(id)
	for _, p := range r.s.st.produtos {
		if p.Is(id) {
			return p, true
		}
	}
	for _, p := range r.s.st.produtos {
		if id != "" && strings.EqualFold(p.Codigo, id) {
			return p, true
		}
	}
	return domain.Produto{}, false
}

func (r produtos) Create(ctx context.Context, p *domain.Produto) error {
	defer r.s.lock(ctx)()

	p.Assign()
	for _, existing := range r.s.st.produtos {
		if strings.EqualFold(existing.Codigo, p.Codigo) {
			return errors.ConflictWithKey("errors.produto_codigo_duplicado", map[string]string{"codigo": p.Codigo})
		}
		if existing.ID == p.ID {
			return errors.ConflictWithKey("errors.registro_duplicado", nil)
		}
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.produtos[p.OID] = *p
	return nil
}

func (r produtos) Get(ctx context.Context, id string) (*domain.Produto, error) {
	defer r.s.lock(ctx)()

	p, ok := r.find(id)
	if !ok {
		return nil, errors.NotFound("produto")
	}
	return &p, nil
}

func (r produtos) List(ctx context.Context, f store.ProdutoFilter) ([]*domain.Produto, int64, error) {
	defer r.s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var rows []domain.Produto
	for _, p := range r.s.st.produtos {
		if f.CentralID != "" && !identity.Matches(f.CentralID, p.CentralID) {
			continue
		}
		if f.CategoriaID != "" && !identity.Matches(f.CategoriaID, p.CategoriaID) {
			continue
		}
		if len(f.IDs) > 0 && !slices.ContainsFunc(f.IDs, p.Is) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Nome), search) &&
			!strings.Contains(strings.ToLower(p.Codigo), search) &&
			!p.Is(search) {
			continue
		}
		rows = append(rows, p)
	}

	rows, total := page(rows, f.Page, func(a, b domain.Produto) bool {
		if a.Nome != b.Nome {
			return a.Nome < b.Nome
		}
		return a.Codigo < b.Codigo
	})
	out := make([]*domain.Produto, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, total, nil
}

func (r produtos) Update(ctx context.Context, p *domain.Produto) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.produtos[p.OID]
	if !ok {
		return errors.NotFound("produto")
	}
	p.Identity = existing.Identity
	p.Codigo = existing.Codigo
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.st.produtos[p.OID] = *p
	return nil
}

func (r produtos) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	p, ok := r.find(id)
	if !ok {
		return errors.NotFound("produto")
	}
	delete(r.s.st.produtos, p.OID)
	return nil
}

func (r produtos) AppendObservacao(ctx context.Context, id, line string) error {
	defer r.s.lock(ctx)()

	p, ok := r.find(id)
	if !ok {
		return errors.NotFound("produto")
	}
	if p.Observacoes != "" {
		p.Observacoes += "\n"
	}
	p.Observacoes += line
	p.UpdatedAt = r.s.now()
	r.s.st.produtos[p.OID] = p
	return nil
}

func (r produtos) CodigosWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	defer r.s.lock(ctx)()

	var out []string
	for _, p := range r.s.st.produtos {
		if strings.HasPrefix(strings.ToUpper(p.Codigo), strings.ToUpper(prefix)) {
			out = append(out, p.Codigo)
		}
	}
	slices.Sort(out)
	return out, nil
}
