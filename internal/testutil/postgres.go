// Package testutil provides shared testing utilities for the recall project.
//
// This package contains reusable test infrastructure that can be used across
// multiple packages, following the pattern of Go standard library packages
// like net/http/httptest and testing/iotest.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/recallhq/recall/db"
)

// TestDBContainer wraps a PostgreSQL test container with connection pool.
//
// Provides:
//   - Isolated PostgreSQL instance with pgvector extension
//   - Connection pool for database operations
//   - Automatic cleanup via cleanup function
type TestDBContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL container for testing with the pgvector
// extension and the full schema applied through the embedded migrations.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    tdb, cleanup := testutil.SetupTestDB(t)
//	    defer cleanup()
//
//	    var count int
//	    err := tdb.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
//	    require.NoError(t, err)
//	}
func SetupTestDB(t *testing.T) (*TestDBContainer, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("recall_test"),
		postgres.WithUsername("recall_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Apply the embedded migrations, same code path as production startup.
	if err := db.Migrate(connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to ping database: %v", err)
	}

	container := &TestDBContainer{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(context.Background())
	}

	return container, cleanup
}
