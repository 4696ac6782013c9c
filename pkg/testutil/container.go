// Package testutil provides testing utilities for the almox service: a
// shared PostgreSQL testcontainer with schema-per-test isolation, sqlmock
// and publisher mocks, and fixtures for the location hierarchy.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container. Empty
// fields take the DefaultPostgresConfig value.
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig returns the settings used by IntegrationSuite. The image
// can be swapped with ALMOX_TEST_POSTGRES_IMAGE.
func DefaultPostgresConfig() PostgresContainerConfig {
	image := os.Getenv("ALMOX_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = "postgres:15-alpine"
	}
	return PostgresContainerConfig{
		Database: "almox_test",
		Username: "almox",
		Password: "almox",
		Image:    image,
	}
}

func (c PostgresContainerConfig) withDefaults() PostgresContainerConfig {
	d := DefaultPostgresConfig()
	for _, f := range []struct{ v, def *string }{
		{&c.Database, &d.Database}, {&c.Username, &d.Username},
		{&c.Password, &d.Password}, {&c.Image, &d.Image},
	} {
		if *f.v == "" {
			*f.v = *f.def
		}
	}
	return c
}

// NewPostgresContainer starts a PostgreSQL container and waits until it
// accepts connections. Repository tests share one through IntegrationSuite
// and isolate themselves with one schema each.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	cfg = cfg.withDefaults()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateSchema creates an empty schema and returns a DSN whose connections
// use it as search_path.
func (c *PostgresContainer) CreateSchema(ctx context.Context, db *sqlx.DB, schema string) (string, error) {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return "", fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	sep := "?"
	if strings.Contains(c.DSN, "?") {
		sep = "&"
	}
	return c.DSN + sep + "search_path=" + schema, nil
}

// DropSchema removes a schema and everything in it.
func (c *PostgresContainer) DropSchema(ctx context.Context, db *sqlx.DB, schema string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
	return err
}
