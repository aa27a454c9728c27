package testutil

import (
	"InsMarket/internal/persistence"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestPostgresDSN returns the Postgres DSN for integration tests, or "" when
// TEST_POSTGRES_DSN is unset.
func TestPostgresDSN() string {
	return os.Getenv("TEST_POSTGRES_DSN")
}

// SetupTestStore opens a migrated store in a temporary SQLite file. The
// store is closed when the test ends.
func SetupTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	return openStore(t, persistence.DriverSQLite, filepath.Join(t.TempDir(), "runs.db"))
}

// SetupPostgresStore opens a migrated Postgres store, skipping the test when
// no integration database is configured.
func SetupPostgresStore(t *testing.T) *persistence.Store {
	t.Helper()
	RequireIntegration(t)
	dsn := TestPostgresDSN()
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	return openStore(t, persistence.DriverPostgres, dsn)
}

func openStore(t *testing.T, driver, dsn string) *persistence.Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := persistence.Open(ctx, driver, dsn, nil, zerolog.Nop())
	if err != nil {
		if driver == persistence.DriverPostgres {
			t.Skipf("test postgres not available: %v", err)
		}
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// RequireIntegration skips the test if not running integration tests.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("skipping integration test (set INTEGRATION_TEST=1 to run)")
	}
}
