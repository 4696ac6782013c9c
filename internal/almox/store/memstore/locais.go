package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

type locais struct{ s *Store }

func cloneLocal(l domain.Local) *domain.Local {
	l.SubAlmoxarifadoIDs = slices.Clone(l.SubAlmoxarifadoIDs)
	return &l
}

func notFoundLocal(tipo domain.LocalTipo) error {
	if tipo == "" {
		return errors.NotFound("local")
	}
	return errors.NotFound(string(tipo))
}

func (r locais) Create(ctx context.Context, l *domain.Local) error {
	defer r.s.lock(ctx)()

	l.Assign()
	for _, existing := range r.s.st.locais {
		if existing.ID == l.ID {
			return errors.ConflictWithKey("errors.registro_duplicado", nil)
		}
	}
	now := r.s.now()
	l.CreatedAt, l.UpdatedAt = now, now
	r.s.st.locais[l.OID] = *cloneLocal(*l)
	return nil
}

func (r locais) find(tipo domain.LocalTipo, id string) (domain.Local, bool) {
	for _, l := range r.s.st.locais {
		if (tipo == "" || l.Tipo == tipo) && l.Is(id) {
			return l, true
		}
	}
	return domain.Local{}, false
}

func (r locais) Get(ctx context.Context, tipo domain.LocalTipo, id string) (*domain.Local, error) {
	defer r.s.lock(ctx)()

	l, ok := r.find(tipo, id)
	if !ok {
		return nil, notFoundLocal(tipo)
	}
	return cloneLocal(l), nil
}

func (r locais) List(ctx context.Context, f store.LocalFilter) ([]*domain.Local, error) {
	defer r.s.lock(ctx)()

	var rows []domain.Local
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, l := range r.s.st.locais {
		if f.Tipo != "" && l.Tipo != f.Tipo {
			continue
		}
		if len(f.IDs) > 0 && !slices.ContainsFunc(f.IDs, l.Is) {
			continue
		}
		if !matchIDs(f.CentralIDs, l.CentralID) || !matchIDs(f.AlmoxarifadoIDs, l.AlmoxarifadoID) {
			continue
		}
		if len(f.SubAlmoxarifadoIDs) > 0 && !slices.ContainsFunc(l.SubLinks(), func(id string) bool {
			return matchAny(f.SubAlmoxarifadoIDs, id)
		}) {
			continue
		}
		if f.InterCentral && !l.CanReceiveInterCentral {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Nome), search) {
			continue
		}
		rows = append(rows, l)
	}

	sorted, _ := page(rows, domain.Page{}, func(a, b domain.Local) bool {
		if a.Tipo != b.Tipo {
			return slices.Index(domain.LocalTipos, a.Tipo) < slices.Index(domain.LocalTipos, b.Tipo)
		}
		return a.Nome < b.Nome
	})
	out := make([]*domain.Local, len(sorted))
	for i := range sorted {
		out[i] = cloneLocal(sorted[i])
	}
	return out, nil
}

func (r locais) Update(ctx context.Context, l *domain.Local) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.st.locais[l.OID]
	if !ok || existing.Tipo != l.Tipo {
		return notFoundLocal(l.Tipo)
	}
	l.Identity = existing.Identity
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = r.s.now()
	r.s.st.locais[l.OID] = *cloneLocal(*l)
	return nil
}

func (r locais) Delete(ctx context.Context, tipo domain.LocalTipo, id string) error {
	defer r.s.lock(ctx)()

	l, ok := r.find(tipo, id)
	if !ok {
		return notFoundLocal(tipo)
	}
	delete(r.s.st.locais, l.OID)
	return nil
}
