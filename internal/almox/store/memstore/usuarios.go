package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

type usuarios struct{ s *Store }

func cloneUsuario(u domain.Usuario) *domain.Usuario {
	u.CategoriaIDs = slices.Clone(u.CategoriaIDs)
	return &u
}

func (r usuarios) find(id string) (domain.Usuario, bool) {
	for _, u := range r.s.st.usuarios {
		if u.Is(id) {
			return u, true
		}
	}
	return domain.Usuario{}, false
}

func (r usuarios) duplicate(u *domain.Usuario) bool {
	for _, existing := range r.s.st.usuarios {
		if existing.OID == u.OID {
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) ||
			(u.Username != "" && strings.EqualFold(existing.Username, u.Username)) {
			return true
		}
	}
	return false
}

func (r usuarios) Create(ctx context.Context, u *domain.Usuario) error {
	defer r.s.lock(ctx)()

	u.Assign()
	if r.duplicate(u) {
		return errors.ConflictWithKey("errors.usuario_duplicado", nil)
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.st.usuarios[u.OID] = *cloneUsuario(*u)
	return nil
}

func (r usuarios) Get(ctx context.Context, id string) (*domain.Usuario, error) {
	defer r.s.lock(ctx)()

	u, ok := r.find(id)
	if !ok {
		return nil, errors.NotFound("usuario")
	}
	return cloneUsuario(u), nil
}

func (r usuarios) GetByLogin(ctx context.Context, login string) (*domain.Usuario, error) {
	defer r.s.lock(ctx)()

	login = strings.TrimSpace(login)
	for _, u := range r.s.st.usuarios {
		if strings.EqualFold(u.Email, login) || (u.Username != "" && strings.EqualFold(u.Username, login)) {
			return cloneUsuario(u), nil
		}
	}
	return nil, errors.NotFound("usuario")
}

func (r usuarios) List(ctx context.Context, f store.UsuarioFilter) ([]*domain.Usuario, error) {
	defer r.s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var rows []domain.Usuario
	for _, u := range r.s.st.usuarios {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.ScopeIDs != nil && !matchAny(f.ScopeIDs, u.ScopeID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Nome), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Username), search) {
			continue
		}
		rows = append(rows, u)
	}
	rows, _ = page(rows, domain.Page{}, func(a, b domain.Usuario) bool { return a.Nome < b.Nome })
	out := make([]*domain.Usuario, len(rows))
	for i := range rows {
		out[i] = cloneUsuario(rows[i])
	}
	return out, nil
}

func (r usuarios) Update(ctx context.Context, u *domain.Usuario) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.usuarios[u.OID]
	if !ok {
		return errors.NotFound("usuario")
	}
	if r.duplicate(u) {
		return errors.ConflictWithKey("errors.usuario_duplicado", nil)
	}
	u.Identity = existing.Identity
	u.CreatedAt = existing.CreatedAt
	u.LastLoginAt = existing.LastLoginAt
	if u.SenhaHash == "" {
		u.SenhaHash = existing.SenhaHash
	}
	u.UpdatedAt = r.s.now()
	r.s.st.usuarios[u.OID] = *cloneUsuario(*u)
	return nil
}

func (r usuarios) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	u, ok := r.find(id)
	if !ok {
		return errors.NotFound("usuario")
	}
	delete(r.s.st.usuarios, u.OID)
	return nil
}

func (r usuarios) TouchLogin(ctx context.Context, id string, at time.Time) error {
	defer r.s.lock(ctx)()

	u, ok := r.find(id)
	if !ok {
		return errors.NotFound("usuario")
	}
	u.LastLoginAt = ptr(at)
	r.s.st.usuarios[u.OID] = u
	return nil
}
