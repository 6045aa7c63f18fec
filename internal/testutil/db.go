// Package testutil provides test infrastructure for the billing service.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    st := testutil.NewStore(t)
//	    creator := testutil.SeedCreator(t, st, testutil.CreatorOpts{})
//	    // run assertions against st
//	}
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
)

// DSN returns the Postgres DSN for integration runs, or "" when tests should
// use an in-memory SQLite database.
// In CI: TEST_DATABASE_URL is set by the postgres service container.
func DSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// NewStore opens a migrated store and closes it when the test ends.
// Each call without TEST_DATABASE_URL gets its own private SQLite database.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	driver, dsn := string(store.DialectSQLite), sqliteDSN()
	if pg := DSN(); pg != "" {
		driver, dsn = string(store.DialectPostgres), pg
	}
	st, err := store.Open(driver, dsn)
	if err != nil {
		t.Fatalf("testutil: open %s store: %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("testutil: migrate: %v", err)
	}
	return st
}

func sqliteDSN() string {
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("file:billing_%s?mode=memory&cache=shared", name)
}
