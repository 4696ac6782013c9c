package ledger_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/ledger"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/internal/almox/store/memstore"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memstore.Store
	ledger  *ledger.Ledger
	h       *testutil.Hierarchy
	produto *domain.Produto
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	h := testutil.SeedHierarchy(t, s)
	return &fixture{
		store:   s,
		ledger:  ledger.New(s, hierarchy.New(s.Locais()), decimal.Zero),
		h:       h,
		produto: testutil.SeedProduto(t, s, h.Central.ID),
	}
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func (f *fixture) balance(t *testing.T, l *domain.Local) decimal.Decimal {
	t.Helper()
	p, err := f.ledger.Placement(context.Background(), f.produto, l)
	require.NoError(t, err)
	e, err := f.store.Estoques().Find(context.Background(), p)
	if errors.Is(err, errors.ErrNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return e.QuantidadeDisponivel
}

func (f *fixture) movements(t *testing.T) []*domain.Movimentacao {
	t.Helper()
	rows, _, err := f.store.Movimentacoes().List(context.Background(), store.MovimentacaoFilter{Scope: domain.UnrestrictedScope()})
	require.NoError(t, err)
	return rows
}

func TestScenario_EntradaDistribuicaoInsufficient(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// entrada of 10 at the almoxarifado
	res, err := f.ledger.Receive(ctx, f.produto, f.h.Almox, qty(10), &domain.Movimentacao{Tipo: domain.MovEntrada})
	require.NoError(t, err)
	require.Len(t, res.Balances, 1)
	assert.True(t, f.balance(t, f.h.Almox).Equal(qty(10)))
	assert.Equal(t, f.h.Central.ID, res.Balances[0].CentralID)

	// distribuicao of 4 to the setor
	_, err = f.ledger.Transfer(ctx, f.produto, f.h.Almox, f.h.Setor, qty(4), &domain.Movimentacao{Tipo: domain.MovDistribuicao})
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.h.Almox).Equal(qty(6)))
	assert.True(t, f.balance(t, f.h.Setor).Equal(qty(4)))

	log := f.movements(t)
	require.Len(t, log, 2)
	tipos := []domain.MovimentacaoTipo{log[0].Tipo, log[1].Tipo}
	assert.ElementsMatch(t, []domain.MovimentacaoTipo{domain.MovEntrada, domain.MovDistribuicao}, tipos)

	// debit of 20 against 6
	_, err = f.ledger.Debit(ctx, f.produto, f.h.Almox, qty(20))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "6", appErr.Params["available"])
	assert.True(t, f.balance(t, f.h.Almox).Equal(qty(6)))
}

func TestTransfer_FailureLeavesNothingBehind(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.Receive(ctx, f.produto, f.h.Almox, qty(3), &domain.Movimentacao{Tipo: domain.MovEntrada})
	require.NoError(t, err)

	_, err = f.ledger.Transfer(ctx, f.produto, f.h.Almox, f.h.Setor, qty(5), &domain.Movimentacao{Tipo: domain.MovDistribuicao})
	require.Error(t, err)

	assert.True(t, f.balance(t, f.h.Almox).Equal(qty(3)))
	assert.True(t, f.balance(t, f.h.Setor).IsZero())
	assert.Len(t, f.movements(t), 1)
}

func TestTransfer_RejectsSameLocation(t *testing.T) {
	f := setup(t)

	_, err := f.ledger.Transfer(context.Background(), f.produto, f.h.Almox, f.h.Almox, qty(1), &domain.Movimentacao{Tipo: domain.MovTransferencia})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestAmountsMustBePositive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, f.produto, f.h.Almox, qty(0))
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.ledger.Debit(ctx, f.produto, f.h.Almox, qty(-1))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestConservationAndNonNegativity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	locais := []*domain.Local{f.h.Central, f.h.Almox, f.h.Sub, f.h.Setor, f.h.SetorDireto}

	entradas, saidas := decimal.Zero, decimal.Zero
	for i := 0; i < 300; i++ {
		amount := qty(int64(rng.Intn(20) + 1))
		a := locais[rng.Intn(len(locais))]
		b := locais[rng.Intn(len(locais))]

		switch rng.Intn(3) {
		case 0:
			if _, err := f.ledger.Receive(ctx, f.produto, a, amount, &domain.Movimentacao{Tipo: domain.MovEntrada}); err == nil {
				entradas = entradas.Add(amount)
			}
		case 1:
			if _, err := f.ledger.Issue(ctx, f.produto, a, amount, &domain.Movimentacao{Tipo: domain.MovSaida}); err == nil {
				saidas = saidas.Add(amount)
			}
		default:
			_, _ = f.ledger.Transfer(ctx, f.produto, a, b, amount, &domain.Movimentacao{Tipo: domain.MovTransferencia})
		}

		total := decimal.Zero
		for _, l := range locais {
			bal := f.balance(t, l)
			require.False(t, bal.IsNegative(), "balance of %s went negative", l.Nome)
			total = total.Add(bal)
		}
		require.True(t, total.Equal(entradas.Sub(saidas)), "step %d: total %s, expected %s", i, total, entradas.Sub(saidas))
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.Receive(ctx, f.produto, f.h.Almox, qty(50), &domain.Movimentacao{Tipo: domain.MovEntrada})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Transfer(ctx, f.produto, f.h.Almox, f.h.Setor, qty(2), &domain.Movimentacao{Tipo: domain.MovDistribuicao})
		}()
	}
	wg.Wait()

	assert.True(t, f.balance(t, f.h.Almox).IsZero())
	assert.True(t, f.balance(t, f.h.Setor).Equal(qty(50)))
	assert.Len(t, f.movements(t), 26)
}

func TestClassifyUsesConfiguredRatio(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.Receive(ctx, f.produto, f.h.Almox, qty(100), &domain.Movimentacao{Tipo: domain.MovEntrada})
	require.NoError(t, err)
	e, err := f.ledger.Debit(ctx, f.produto, f.h.Almox, qty(90))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBaixo, f.ledger.Classify(e))

	strict := ledger.New(f.store, hierarchy.New(f.store.Locais()), decimal.NewFromFloat(0.05))
	assert.Equal(t, domain.StatusNormal, strict.Classify(e))

	e, err = f.ledger.Debit(ctx, f.produto, f.h.Almox, qty(10))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusZerado, f.ledger.Classify(e))
}
