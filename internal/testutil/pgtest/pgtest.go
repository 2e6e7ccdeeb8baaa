// Package pgtest hands integration tests a migrated Postgres pool: the one
// at DATABASE_URL when set, otherwise a throwaway testcontainers instance.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/retail-ledger/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Pool returns a migrated pool with every ledger table truncated. The test is
// skipped when no database can be reached.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	_ = godotenv.Load("../../.env")
	ctx := context.Background()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = startContainer(t)
	}

	pool, err := db.Connect(ctx, url)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE transactions, audit_log, accounts, user_banks, users, idempotency_keys RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

func startContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	var (
		container *postgres.PostgresContainer
		err       error
	)
	func() {
		// testcontainers panics when no docker daemon is reachable.
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("docker unavailable: %v", r)
			}
		}()
		container, err = postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("ledger_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
	}()
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	return connStr
}
