package service_test

import (
	"context"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/events"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/internal/almox/store/memstore"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type env struct {
	store *memstore.Store
	h     *testutil.Hierarchy
	pub   *testutil.MockPublisher
	deps  service.Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := memstore.New()
	pub := testutil.NewMockPublisher()
	return &env{
		store: s,
		h:     testutil.SeedHierarchy(t, s),
		pub:   pub,
		deps:  service.NewDeps(s, events.NewWithPublisher(pub, nil), decimal.Zero, nil),
	}
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func as(a *actor.Actor) context.Context {
	return actor.WithActor(context.Background(), a)
}

func ref(l *domain.Local) domain.LocalRef {
	return domain.LocalRef{Tipo: l.Tipo, ID: l.ID}
}

func (e *env) superAdmin() *actor.Actor {
	return &actor.Actor{ID: uuid.NewString(), Nome: "Root", Role: actor.RoleSuperAdmin}
}

func (e *env) adminCentral() *actor.Actor {
	return &actor.Actor{
		ID:        uuid.NewString(),
		Nome:      "Ana Central",
		Role:      actor.RoleAdminCentral,
		ScopeID:   e.h.Central.ID,
		CentralID: e.h.Central.ID,
	}
}

func (e *env) gerente() *actor.Actor {
	return &actor.Actor{
		ID:        uuid.NewString(),
		Nome:      "Gil Gerente",
		Role:      actor.RoleGerenteAlmox,
		ScopeID:   e.h.Almox.ID,
		CentralID: e.h.Central.ID,
	}
}

func (e *env) respSub() *actor.Actor {
	return &actor.Actor{
		ID:        uuid.NewString(),
		Nome:      "Rui Sub",
		Role:      actor.RoleRespSubAlmox,
		ScopeID:   e.h.Sub.ID,
		CentralID: e.h.Central.ID,
	}
}

func (e *env) operadorSetor(setor *domain.Local) *actor.Actor {
	return &actor.Actor{
		ID:        uuid.NewString(),
		Nome:      "Olga Setor",
		Role:      actor.RoleOperadorSetor,
		ScopeID:   setor.ID,
		CentralID: e.h.Central.ID,
	}
}

func (e *env) balance(t *testing.T, p *domain.Produto, l *domain.Local) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	placement, err := e.deps.Ledger.Placement(ctx, p, l)
	require.NoError(t, err)
	row, err := e.store.Estoques().Find(ctx, placement)
	if errors.Is(err, errors.ErrNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return row.QuantidadeDisponivel
}

func (e *env) movements(t *testing.T) []*domain.Movimentacao {
	t.Helper()
	rows, _, err := e.store.Movimentacoes().List(context.Background(), store.MovimentacaoFilter{Scope: domain.UnrestrictedScope()})
	require.NoError(t, err)
	return rows
}

// stock receives n units of p at l as super_admin.
func (e *env) stock(t *testing.T, p *domain.Produto, l *domain.Local, n int64) {
	t.Helper()
	_, err := service.NewMovimentacaoService(e.deps).Entrada(as(e.superAdmin()), service.EntradaInput{
		ProdutoID:  p.ID,
		Quantidade: qty(n),
		Destino:    ref(l),
	})
	require.NoError(t, err)
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(qty(want)), "expected %d, got %s", want, got)
}
