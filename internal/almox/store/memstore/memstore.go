// Package memstore is an in-memory store.Store. Every call is serialized
// by one mutex and WithinTx restores a snapshot when fn fails, so it gives
// the same all-or-nothing guarantees as the Postgres repository.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/google/uuid"
)

type txKey struct{}

// Store implements store.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

type state struct {
	locais        map[uuid.UUID]domain.Local
	categorias    map[uuid.UUID]domain.Categoria
	produtos      map[uuid.UUID]domain.Produto
	usuarios      map[uuid.UUID]domain.Usuario
	estoques      map[uuid.UUID]domain.Estoque
	movimentacoes []domain.Movimentacao
	lotes         map[uuid.UUID]domain.Lote
	demandas      map[uuid.UUID]domain.Demanda
	alertas       map[uuid.UUID]domain.Alerta
}

func newState() *state {
	return &state{
		locais:     make(map[uuid.UUID]domain.Local),
		categorias: make(map[uuid.UUID]domain.Categoria),
		produtos:   make(map[uuid.UUID]domain.Produto),
		usuarios:   make(map[uuid.UUID]domain.Usuario),
		estoques:   make(map[uuid.UUID]domain.Estoque),
		lotes:      make(map[uuid.UUID]domain.Lote),
		demandas:   make(map[uuid.UUID]domain.Demanda),
		alertas:    make(map[uuid.UUID]domain.Alerta),
	}
}

// clone copies the maps. Stored values are replaced on write and never
// mutated in place, so sharing their slices is safe.
func (s *state) clone() *state {
	return &state{
		locais:        maps.Clone(s.locais),
		categorias:    maps.Clone(s.categorias),
		produtos:      maps.Clone(s.produtos),
		usuarios:      maps.Clone(s.usuarios),
		estoques:      maps.Clone(s.estoques),
		movimentacoes: slices.Clone(s.movimentacoes),
		lotes:         maps.Clone(s.lotes),
		demandas:      maps.Clone(s.demandas),
		alertas:       maps.Clone(s.alertas),
	}
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source; tests use it for stable timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Locais() store.LocalStore               { return locais{s} }
func (s *Store) Categorias() store.CategoriaStore       { return categorias{s} }
func (s *Store) Produtos() store.ProdutoStore           { return produtos{s} }
func (s *Store) Estoques() store.EstoqueStore           { return estoques{s} }
func (s *Store) Movimentacoes() store.MovimentacaoStore { return movimentacoes{s} }
func (s *Store) Lotes() store.LoteStore                 { return lotes{s} }
func (s *Store) Demandas() store.DemandaStore           { return demandas{s} }
func (s *Store) Usuarios() store.UsuarioStore           { return usuarios{s} }
func (s *Store) Alertas() store.AlertaStore             { return alertas{s} }

// WithinTx holds the store lock for the whole of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store lock unless ctx already runs inside WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// matchAny reports whether stored is one of the expanded forms.
func matchAny(forms []string, stored string) bool {
	return identity.MatchesAny(forms, stored)
}

func matchIDs(ids []string, stored string) bool {
	return len(ids) == 0 || identity.MatchesAny(ids, stored)
}

// page sorts, counts and slices a listing.
func page[T any](rows []T, p domain.Page, less func(a, b T) bool) ([]T, int64) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	start, end := p.Bounds(len(rows))
	return rows[start:end], int64(len(rows))
}

func ptr[T any](v T) *T { return &v }
