package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/mrx7355608/finance-app-2.0/internal/storage"
	"github.com/mrx7355608/finance-app-2.0/internal/storage/storagetest"
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("HERDBOOK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("HERDBOOK_TEST_DATABASE_URL not set")
	}
	return dsn
}

// Set HERDBOOK_TEST_DATABASE_URL to run against a disposable Postgres database.
// Every subtest truncates both tables.
func TestStore(t *testing.T) {
	dsn := testDSN(t)

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := s.pool.Exec(ctx, `TRUNCATE expenses, records RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRunMigrations_PoolStaysUsable(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for i := 0; i < 2; i++ {
		if err := RunMigrations(s.pool); err != nil {
			t.Fatalf("RunMigrations #%d failed: %v", i+1, err)
		}
	}
	if err := s.pool.Ping(ctx); err != nil {
		t.Fatalf("pool closed by migrations: %v", err)
	}
	if _, err := s.Records().FindAll(ctx); err != nil {
		t.Fatalf("FindAll after migrations: %v", err)
	}
}
