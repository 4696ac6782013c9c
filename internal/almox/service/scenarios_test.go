package service_test

import (
	"math/rand"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndToEnd walks entrada, distribuicao, a refused debit and a demanda
// fulfilled in two batches.
func TestEndToEnd(t *testing.T) {
	e := newEnv(t)
	mov := service.NewMovimentacaoService(e.deps)
	dem := service.NewDemandaService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	ger := as(e.gerente())

	// entrada of 10 at the almoxarifado
	_, err := mov.Entrada(ger, service.EntradaInput{ProdutoID: p.ID, Quantidade: qty(10), Destino: ref(e.h.Almox)})
	require.NoError(t, err)
	requireDecimal(t, 10, e.balance(t, p, e.h.Almox))
	movs := e.movements(t)
	require.Len(t, movs, 1)
	assert.Equal(t, domain.MovEntrada, movs[0].Tipo)
	requireDecimal(t, 10, movs[0].Quantidade)

	// distribuicao of 4 into the setor
	_, err = mov.Distribuicao(ger, service.DistribuicaoInput{
		ProdutoID: p.ID, Quantidade: qty(4), Origem: ref(e.h.Almox), Destino: ref(e.h.SetorDireto),
	})
	require.NoError(t, err)
	requireDecimal(t, 6, e.balance(t, p, e.h.Almox))
	requireDecimal(t, 4, e.balance(t, p, e.h.SetorDireto))
	movs = e.movements(t)
	require.Len(t, movs, 2)
	assert.ElementsMatch(t,
		[]domain.MovimentacaoTipo{domain.MovEntrada, domain.MovDistribuicao},
		[]domain.MovimentacaoTipo{movs[0].Tipo, movs[1].Tipo})

	// a debit of 20 against 6 is refused
	_, err = mov.SaidaJustificada(ger, service.SaidaJustificadaInput{
		ProdutoID: p.ID, Quantidade: qty(20), Origem: ref(e.h.Almox), Motivo: "perda",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))
	requireDecimal(t, 6, e.balance(t, p, e.h.Almox))

	// demanda of 10 fulfilled 6 + 4, a third batch is refused
	e.stock(t, p, e.h.Almox, 4)
	d, err := dem.Create(as(e.operadorSetor(e.h.SetorDireto)), service.DemandaInput{
		Items: []service.DemandaItemInput{{ProdutoID: p.ID, Quantidade: qty(10)}},
	})
	require.NoError(t, err)

	res, err := dem.Atender(ger, d.ID, service.AtenderInput{Origem: ref(e.h.Almox), Items: atender(item(p, 6))})
	require.NoError(t, err)
	requireDecimal(t, 6, res.Demanda.Items[0].Atendido)
	assert.Equal(t, domain.DemandaParcial, res.Demanda.Status)

	res, err = dem.Atender(ger, d.ID, service.AtenderInput{Origem: ref(e.h.Almox), Items: atender(item(p, 4))})
	require.NoError(t, err)
	requireDecimal(t, 10, res.Demanda.Items[0].Atendido)
	assert.Equal(t, domain.DemandaAtendido, res.Demanda.Status)

	_, err = dem.Atender(ger, d.ID, service.AtenderInput{Origem: ref(e.h.Almox), Items: atender(item(p, 1))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	requireDecimal(t, 14, e.balance(t, p, e.h.SetorDireto))
}

func TestEndToEnd_ProdutoOwnership(t *testing.T) {
	e := newEnv(t)
	svc := service.NewCatalogService(e.deps)

	_, err := svc.CreateProduto(as(e.respSub()), service.ProdutoInput{
		Nome: "Seringa", Unidade: "un", CentralID: e.h.OutraCentral.ID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	p, err := svc.CreateProduto(as(e.respSub()), service.ProdutoInput{
		Nome: "Seringa", Unidade: "un", CentralID: e.h.Central.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, e.h.Central.ID, p.CentralID)
}

func TestEndToEnd_SetorWithDivergentSubs(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLocalService(e.deps)

	subSul, err := svc.Create(as(e.superAdmin()), domain.LocalSubAlmoxarifado, service.LocalInput{
		Nome: "Sub Sul", AlmoxarifadoID: e.h.OutroAlmox.ID,
	})
	require.NoError(t, err)

	_, err = svc.Create(as(e.superAdmin()), domain.LocalSetor, service.LocalInput{
		Nome: "Misto", SubAlmoxarifadoIDs: []string{e.h.Sub.ID, subSul.ID},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = svc.Update(as(e.superAdmin()), domain.LocalSetor, e.h.Setor.ID, service.LocalInput{
		Nome: "UTI", SubAlmoxarifadoIDs: []string{e.h.Sub.ID, subSul.ID},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

// TestRandomOperations_ConserveStock runs random transfers and checks that
// the balances always add up to what entered and never go negative.
func TestRandomOperations_ConserveStock(t *testing.T) {
	e := newEnv(t)
	mov := service.NewMovimentacaoService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	root := as(e.superAdmin())
	locais := []*domain.Local{e.h.Central, e.h.Almox, e.h.Sub, e.h.Setor, e.h.SetorDireto}
	rng := rand.New(rand.NewSource(7))

	entered := decimal.Zero
	for i := 0; i < 200; i++ {
		n := qty(int64(rng.Intn(20) + 1))
		if rng.Intn(4) == 0 {
			_, err := mov.Entrada(root, service.EntradaInput{ProdutoID: p.ID, Quantidade: n, Destino: ref(locais[rng.Intn(len(locais))])})
			require.NoError(t, err)
			entered = entered.Add(n)
			continue
		}
		from, to := locais[rng.Intn(len(locais))], locais[rng.Intn(len(locais))]
		if from == to {
			continue
		}
		_, err := mov.Distribuicao(root, service.DistribuicaoInput{ProdutoID: p.ID, Quantidade: n, Origem: ref(from), Destino: ref(to)})
		if err != nil {
			require.True(t, errors.Is(err, errors.ErrInsufficientBalance), "unexpected %v", err)
		}
	}

	rows, _, err := e.store.Estoques().List(root, store.EstoqueFilter{Scope: domain.UnrestrictedScope(), ProdutoForms: p.AllForms()})
	require.NoError(t, err)
	total := decimal.Zero
	for _, row := range rows {
		assert.False(t, row.QuantidadeDisponivel.IsNegative())
		total = total.Add(row.QuantidadeDisponivel)
	}
	assert.True(t, total.Equal(entered), "balances %s, entered %s", total, entered)
}
