package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/repository"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var estoqueColumns = []string{
	"id", "produto_id", "local_tipo", "local_id",
	"quantidade", "quantidade_disponivel", "quantidade_inicial",
}

func placement() store.Placement {
	return store.Placement{
		ProdutoID:    "p1",
		ProdutoForms: []string{"p1"},
		LocalTipo:    domain.LocalAlmoxarifado,
		LocalID:      "a1",
		LocalForms:   []string{"a1"},
	}
}

func newMockStore(t *testing.T) (*repository.Store, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() {
		mockDB.ExpectationsWereMet(t)
		mockDB.Close()
	})
	return repository.New(mockDB.Wrapped()), mockDB
}

func TestEstoque_DebitIsOneConditionalUpdate(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.Mock.ExpectQuery(regexp.QuoteMeta("UPDATE estoques SET")+`(?s).*`+regexp.QuoteMeta("AND quantidade_disponivel >= $4")).
		WithArgs(sqlmock.AnyArg(), "almoxarifado", sqlmock.AnyArg(), "3").
		WillReturnRows(testutil.MockRows(estoqueColumns...).
			AddRow(uuid.New().String(), "p1", "almoxarifado", "a1", "7", "7", "10"))

	e, err := s.Estoques().Debit(context.Background(), placement(), decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, e.QuantidadeDisponivel.Equal(decimal.NewFromInt(7)))
}

func TestEstoque_DebitInsufficientReportsAvailable(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.ExpectQuery("UPDATE estoques SET").
		WillReturnRows(testutil.MockRows(estoqueColumns...))
	mockDB.ExpectQuery("SELECT * FROM estoques WHERE id = (").
		WillReturnRows(testutil.MockRows(estoqueColumns...).
			AddRow(uuid.New().String(), "p1", "almoxarifado", "a1", "4", "4", "10"))

	_, err := s.Estoques().Debit(context.Background(), placement(), decimal.NewFromInt(5))
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_BALANCE", appErr.Code)
	assert.Equal(t, "4", appErr.Params["available"])
	assert.Equal(t, "5", appErr.Params["requested"])
}

func TestEstoque_DebitWithoutRowReportsZero(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.ExpectQuery("UPDATE estoques SET").WillReturnRows(testutil.MockRows(estoqueColumns...))
	mockDB.ExpectQuery("SELECT * FROM estoques WHERE id = (").WillReturnRows(testutil.MockRows(estoqueColumns...))

	_, err := s.Estoques().Debit(context.Background(), placement(), decimal.NewFromInt(1))
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "0", appErr.Params["available"])
}

func TestEstoque_CreditInsertsOnFirstUse(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.ExpectQuery("UPDATE estoques SET").WillReturnRows(testutil.MockRows(estoqueColumns...))
	mockDB.ExpectQuery("INSERT INTO estoques").
		WithArgs(sqlmock.AnyArg(), "p1", "almoxarifado", "a1", "10", "", "", "", "").
		WillReturnRows(testutil.MockRows(estoqueColumns...).
			AddRow(uuid.New().String(), "p1", "almoxarifado", "a1", "10", "10", "10"))

	e, err := s.Estoques().Credit(context.Background(), placement(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, e.QuantidadeInicial.Equal(decimal.NewFromInt(10)))
}

func TestWithinTx_CommitsAndRollsBack(t *testing.T) {
	s, mockDB := newMockStore(t)
	ctx := context.Background()

	mockDB.ExpectTx(func() {
		mockDB.ExpectExec("DELETE FROM estoques").WillReturnResult(sqlmock.NewResult(0, 2))
	})
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.Estoques().DeleteByProduto(ctx, []string{"p1"})
		assert.EqualValues(t, 2, n)
		return err
	})
	require.NoError(t, err)

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()
	boom := errors.BadRequest("boom")
	err = s.WithinTx(ctx, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestList_EmptyScopeMatchesNothing(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.ExpectQuery("SELECT COUNT(*) FROM estoques WHERE (FALSE)").
		WillReturnRows(testutil.MockRows("count").AddRow(0))
	mockDB.ExpectQuery("SELECT * FROM estoques WHERE (FALSE)").
		WillReturnRows(testutil.MockRows(estoqueColumns...))

	rows, total, err := s.Estoques().List(context.Background(), store.EstoqueFilter{Scope: domain.Scope{}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}

func TestDemanda_GetForUpdateLocksRow(t *testing.T) {
	s, mockDB := newMockStore(t)
	id := uuid.New()

	mockDB.ExpectTx(func() {
		mockDB.ExpectQuery("SELECT * FROM demandas WHERE id = $1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(testutil.MockRows("id"))
	})
	err := s.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := s.Demandas().GetForUpdate(ctx, id)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestList_TotalComesFromCount(t *testing.T) {
	s, mockDB := newMockStore(t)

	mockDB.ExpectQuery("SELECT COUNT(*) FROM estoques").
		WillReturnRows(testutil.MockRows("count").AddRow(42))
	mockDB.ExpectQuery("SELECT * FROM estoques").
		WillReturnRows(testutil.MockRows(estoqueColumns...))

	_, total, err := s.Estoques().List(context.Background(), store.EstoqueFilter{Scope: domain.UnrestrictedScope()})
	require.NoError(t, err)
	assert.EqualValues(t, 42, total)
}
