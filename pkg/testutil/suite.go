package testutil

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/almoxsms/almox-backend/migrations"
	"github.com/almoxsms/almox-backend/pkg/database"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    os.Exit(m.Run())
//	}
//
//	func TestSomething(t *testing.T) {
//	    db := suite.SetupSchema(t, context.Background(), "something")
//	    // ... run tests against db
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		Fixtures:  NewFixtureFactory(),
		Logger:    logger.New("test", "test", ""),
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

var schemaName = regexp.MustCompile(`[^a-z0-9_]+`)

// SetupSchema creates a schema for one test, applies every migration to it
// and returns a database handle bound to it. The schema is dropped when the
// test finishes.
func (s *IntegrationSuite) SetupSchema(t *testing.T, ctx context.Context, name string) *database.DB {
	t.Helper()

	schema := "t_" + schemaName.ReplaceAllString(strings.ToLower(name), "_")
	dsn, err := s.Container.CreateSchema(ctx, s.RawDB, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	db, err := database.NewWithDSN(dsn, s.Logger)
	if err != nil {
		t.Fatalf("failed to connect to schema %s: %v", schema, err)
	}
	if err := migrations.Apply(ctx, db.DB); err != nil {
		t.Fatalf("failed to migrate schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		db.Close()
		if err := s.Container.DropSchema(context.Background(), s.RawDB, schema); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return db
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
