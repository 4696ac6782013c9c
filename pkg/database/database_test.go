package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()
	db := Wrap(sqlx.NewDb(raw, "postgres"), nil)

	mock.ExpectPing()
	assert.Equal(t, "up", db.Health(context.Background()).Status)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	h := db.Health(context.Background())
	assert.Equal(t, "down", h.Status)
	assert.Contains(t, h.Error, "connection refused")

	require.NoError(t, mock.ExpectationsWereMet())
}
