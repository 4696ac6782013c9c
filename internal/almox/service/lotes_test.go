package service_test

import (
	"context"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withLote receives n units of p at l into lote L-01 and returns the lote.
func (e *env) withLote(t *testing.T, p *domain.Produto, l *domain.Local, n int64) *domain.Lote {
	t.Helper()
	_, err := service.NewMovimentacaoService(e.deps).Entrada(as(e.superAdmin()), service.EntradaInput{
		ProdutoID:  p.ID,
		Quantidade: qty(n),
		Destino:    ref(l),
		Lote:       "L-01",
	})
	require.NoError(t, err)
	lote, err := e.store.Lotes().FindByNumero(context.Background(), p.AllForms(), "L-01")
	require.NoError(t, err)
	return lote
}

func qtyPtr(n int64) *decimal.Decimal {
	d := qty(n)
	return &d
}

func (e *env) produto(t *testing.T, p *domain.Produto) *domain.Produto {
	t.Helper()
	got, err := e.store.Produtos().Get(context.Background(), p.ID)
	require.NoError(t, err)
	return got
}

func TestLoteService_UpdatePushesDeltaIntoBalance(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 50)

	updated, err := svc.Update(as(e.gerente()), lote.ID, service.LoteUpdate{QuantidadeAtual: qtyPtr(40)})
	require.NoError(t, err)
	requireDecimal(t, 40, updated.QuantidadeAtual)
	requireDecimal(t, 40, e.balance(t, p, e.h.Almox))
	assert.Contains(t, e.produto(t, p).Observacoes, "[LOTE]")
	assert.Contains(t, e.produto(t, p).Observacoes, "Gil Gerente: lote L-01 50 -> 40")

	_, err = svc.Update(as(e.gerente()), lote.ID, service.LoteUpdate{QuantidadeAtual: qtyPtr(55)})
	require.NoError(t, err)
	requireDecimal(t, 55, e.balance(t, p, e.h.Almox))
}

func TestLoteService_UpdateBySuperAdminLeavesNoNote(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 10)

	_, err := svc.Update(as(e.superAdmin()), lote.ID, service.LoteUpdate{QuantidadeAtual: qtyPtr(12)})
	require.NoError(t, err)
	assert.NotContains(t, e.produto(t, p).Observacoes, "[LOTE]")
}

func TestLoteService_UpdateCannotOverdraw(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	mov := service.NewMovimentacaoService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 20)

	_, err := mov.Distribuicao(as(e.gerente()), service.DistribuicaoInput{
		ProdutoID: p.ID, Quantidade: qty(18), Origem: ref(e.h.Almox), Destino: ref(e.h.Sub),
	})
	require.NoError(t, err)

	_, err = svc.Update(as(e.gerente()), lote.ID, service.LoteUpdate{QuantidadeAtual: qtyPtr(0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))

	got, err := svc.Get(as(e.gerente()), lote.ID)
	require.NoError(t, err)
	requireDecimal(t, 20, got.QuantidadeAtual)
	assert.Empty(t, e.produto(t, p).Observacoes)
}

func TestLoteService_UpdateOutsideScope(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.OutroAlmox, 5)

	_, err := svc.Update(as(e.gerente()), lote.ID, service.LoteUpdate{QuantidadeAtual: qtyPtr(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestLoteService_Delete(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 9)

	require.NoError(t, svc.Delete(as(e.gerente()), lote.ID, service.LoteDelete{}))
	requireDecimal(t, 0, e.balance(t, p, e.h.Almox))
	_, err := svc.Get(as(e.gerente()), lote.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoteService_DeleteForce(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	mov := service.NewMovimentacaoService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 50)

	_, err := mov.Distribuicao(as(e.gerente()), service.DistribuicaoInput{
		ProdutoID: p.ID, Quantidade: qty(45), Origem: ref(e.h.Almox), Destino: ref(e.h.Sub),
	})
	require.NoError(t, err)

	err = svc.Delete(as(e.gerente()), lote.ID, service.LoteDelete{Force: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	err = svc.Delete(as(e.superAdmin()), lote.ID, service.LoteDelete{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))
	_, err = svc.Get(as(e.superAdmin()), lote.ID)
	require.NoError(t, err, "failed delete must keep the lote")

	require.NoError(t, svc.Delete(as(e.superAdmin()), lote.ID, service.LoteDelete{Force: true}))
	requireDecimal(t, 0, e.balance(t, p, e.h.Almox))
	requireDecimal(t, 45, e.balance(t, p, e.h.Sub))
}

func TestLoteService_DeleteWithPurge(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)
	lote := e.withLote(t, p, e.h.Almox, 30)
	e.stock(t, p, e.h.Sub, 5)

	require.NoError(t, svc.Delete(as(e.superAdmin()), lote.ID, service.LoteDelete{PurgeProduto: true}))

	requireDecimal(t, 0, e.balance(t, p, e.h.Almox))
	requireDecimal(t, 0, e.balance(t, p, e.h.Sub))
	assert.Empty(t, e.movements(t))
	assert.Contains(t, e.produto(t, p).Observacoes, "[LIMPEZA]")
	assert.Contains(t, e.produto(t, p).Observacoes, "2 estoque(s) e 2 movimentação(ões)")
}

func TestLoteService_CreateDoesNotMoveStock(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLoteService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)

	lote, err := svc.Create(as(e.gerente()), p.ID, service.LoteInput{
		NumeroLote: "  L-99 ",
		Quantidade: qty(7),
		Local:      ref(e.h.Sub),
	})
	require.NoError(t, err)
	assert.Equal(t, "L-99", lote.NumeroLote)
	requireDecimal(t, 0, e.balance(t, p, e.h.Sub))

	lotes, err := svc.ListByProduto(as(e.gerente()), p.Codigo)
	require.NoError(t, err)
	require.Len(t, lotes, 1)

	_, err = svc.Create(as(e.gerente()), p.ID, service.LoteInput{NumeroLote: "L-99", Quantidade: qty(1), Local: ref(e.h.Sub)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}
