package database

import (
	"context"
	"fmt"
	"time"

	"github.com/almoxsms/almox-backend/pkg/config"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres usually starts alongside the service in compose, so the first
// connection is retried a few times before giving up.
const (
	connectAttempts = 5
	connectBackoff  = time.Second
	healthTimeout   = time.Second
)

// DB is the almox connection pool. Repositories reach it through Querier so
// they transparently join a transaction opened by RunInTx.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New opens the pool described by cfg and applies its limits.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := open(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// NewWithDSN opens a pool with driver defaults; integration tests use it
// for per-test schemas.
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	return open(dsn, log)
}

func open(dsn string, log *logger.Logger) (*DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := sqlx.Connect("postgres", dsn)
		if err == nil {
			return Wrap(conn, log), nil
		}
		lastErr = err
		if log != nil && attempt < connectAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("postgres not ready, retrying")
		}
		if attempt < connectAttempts {
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, lastErr)
}

// Wrap adopts an existing sqlx handle, e.g. a sqlmock connection in tests.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	if log == nil {
		log = logger.Nop()
	}
	return &DB{DB: db, logger: log.WithComponent("database")}
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthStatus is the database section of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Open   int    `json:"open_connections"`
	InUse  int    `json:"in_use"`
	Idle   int    `json:"idle"`
}

// Health pings the database and reports pool usage.
func (db *DB) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := db.Stats()
	h := HealthStatus{
		Status: "up",
		Open:   stats.OpenConnections,
		InUse:  stats.InUse,
		Idle:   stats.Idle,
	}
	if err := db.PingContext(ctx); err != nil {
		h.Status = "down"
		h.Error = err.Error()
	}
	return h
}

// Transaction runs fn in a fresh transaction, committing when fn returns nil.
// Most callers want RunInTx, which also makes the transaction visible to
// repositories through the context.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).AnErr("cause", err).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
