package service_test

import (
	"context"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedStatuses leaves one Normal, one Baixo and one Zerado balance at Almox
// and one Normal balance at Sub.
func (e *env) seedStatuses(t *testing.T) (normal, baixo, zerado *domain.Produto) {
	t.Helper()
	mov := service.NewMovimentacaoService(e.deps)
	root := as(e.superAdmin())

	normal = testutil.SeedProduto(t, e.store, e.h.Central.ID)
	e.stock(t, normal, e.h.Almox, 100)

	baixo = testutil.SeedProduto(t, e.store, e.h.Central.ID)
	e.stock(t, baixo, e.h.Almox, 100)
	_, err := mov.Distribuicao(root, service.DistribuicaoInput{
		ProdutoID: baixo.ID, Quantidade: qty(95), Origem: ref(e.h.Almox), Destino: ref(e.h.Sub),
	})
	require.NoError(t, err)

	zerado = testutil.SeedProduto(t, e.store, e.h.Central.ID)
	e.stock(t, zerado, e.h.Almox, 10)
	_, err = mov.SaidaJustificada(root, service.SaidaJustificadaInput{
		ProdutoID: zerado.ID, Quantidade: qty(10), Origem: ref(e.h.Almox), Motivo: "vencido",
	})
	require.NoError(t, err)
	return normal, baixo, zerado
}

func TestDashboardService_Stats(t *testing.T) {
	e := newEnv(t)
	svc := service.NewDashboardService(e.deps)
	_, baixo, _ := e.seedStatuses(t)
	testutil.SeedProduto(t, e.store, e.h.OutraCentral.ID)

	_, err := service.NewDemandaService(e.deps).Create(as(e.operadorSetor(e.h.Setor)), service.DemandaInput{
		Items: []service.DemandaItemInput{{ProdutoID: baixo.ID, Quantidade: qty(1)}},
	})
	require.NoError(t, err)

	stats, err := svc.Stats(as(e.superAdmin()))
	require.NoError(t, err)
	assert.Equal(t, &service.DashboardStats{
		TotalProdutos:     4,
		EstoqueNormal:     2,
		EstoqueBaixo:      1,
		EstoqueZerado:     1,
		DemandasPendentes: 1,
		MovimentacoesHoje: 5,
	}, stats)

	stats, err = svc.Stats(as(e.respSub()))
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalProdutos)
	assert.EqualValues(t, 1, stats.EstoqueNormal)
	assert.EqualValues(t, 0, stats.EstoqueBaixo)
	assert.EqualValues(t, 1, stats.DemandasPendentes)
	assert.EqualValues(t, 1, stats.MovimentacoesHoje)
}

func TestEstoqueService_HierarquiaFilters(t *testing.T) {
	e := newEnv(t)
	svc := service.NewEstoqueService(e.deps)
	normal, baixo, _ := e.seedStatuses(t)

	rows, total, err := svc.Hierarquia(as(e.gerente()), service.EstoqueQuery{Status: domain.StatusBaixo})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, baixo.Nome, rows[0].ProdutoNome)
	assert.Equal(t, "Almoxarifado Geral", rows[0].LocalNome)
	assert.Equal(t, domain.StatusBaixo, rows[0].Status)

	rows, total, err = svc.Hierarquia(as(e.gerente()), service.EstoqueQuery{Produto: normal.Codigo})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, normal.Codigo, rows[0].ProdutoCodigo)

	_, total, err = svc.Hierarquia(as(e.gerente()), service.EstoqueQuery{LocalTipo: domain.LocalSubAlmoxarifado, LocalID: e.h.Sub.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, _, err = svc.Hierarquia(as(e.gerente()), service.EstoqueQuery{Status: "critico"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestEstoqueService_LocalAndOrigens(t *testing.T) {
	e := newEnv(t)
	svc := service.NewEstoqueService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	e.stock(t, p, e.h.Setor, 3)

	rows, err := svc.Setor(as(e.operadorSetor(e.h.Setor)), e.h.Setor.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	requireDecimal(t, 3, rows[0].QuantidadeDisponivel)

	_, err = svc.Setor(as(e.operadorSetor(e.h.Setor)), e.h.SetorOutro.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	origens, err := svc.Origens(as(e.gerente()))
	require.NoError(t, err)
	var nomes []string
	for _, l := range origens {
		nomes = append(nomes, l.Nome)
	}
	assert.ElementsMatch(t, []string{"Almoxarifado Geral", "Sub Farmacia"}, nomes)

	origens, err = svc.Origens(as(e.adminCentral()))
	require.NoError(t, err)
	assert.Len(t, origens, 3)
}

func TestAlertaService_ResolveIsScopedAndIdempotent(t *testing.T) {
	e := newEnv(t)
	svc := service.NewAlertaService(e.deps)
	ctx := context.Background()

	aqui := &domain.Alerta{
		ProdutoID: "p-1", LocalTipo: domain.LocalAlmoxarifado, LocalID: e.h.Almox.ID,
		CentralID: e.h.Central.ID, Status: domain.StatusBaixo, QuantidadeDisponivel: qty(1),
	}
	la := &domain.Alerta{
		ProdutoID: "p-1", LocalTipo: domain.LocalAlmoxarifado, LocalID: e.h.OutroAlmox.ID,
		CentralID: e.h.OutraCentral.ID, Status: domain.StatusZerado,
	}
	require.NoError(t, e.store.Alertas().Open(ctx, aqui))
	require.NoError(t, e.store.Alertas().Open(ctx, la))

	rows, total, err := svc.List(as(e.gerente()), service.AlertaQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, aqui.ID, rows[0].ID)

	_, err = svc.Resolve(as(e.gerente()), la.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	resolved, err := svc.Resolve(as(e.gerente()), aqui.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolvido)
	assert.Equal(t, "Gil Gerente", resolved.ResolvidoPor)

	again, err := svc.Resolve(as(e.gerente()), aqui.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.ResolvidoEm, again.ResolvidoEm)

	open := false
	_, total, err = svc.List(as(e.superAdmin()), service.AlertaQuery{Resolvido: &open})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
