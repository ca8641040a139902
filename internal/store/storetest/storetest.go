// Package storetest opens the Postgres database used by repository tests.
// Tests are skipped unless TEST_DATABASE_URL is set. Every call gets a
// fresh schema, so packages running in parallel never share tables.
package storetest

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"attendance/internal/logging"
	"attendance/internal/store"
)

// EnvURL names the variable holding the test database connection string.
const EnvURL = "TEST_DATABASE_URL"

// Open returns a migrated GORM handle bound to a throwaway schema, which
// is dropped when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	base := os.Getenv(EnvURL)
	if base == "" {
		t.Skipf("%s not set", EnvURL)
	}
	ctx := context.Background()
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	admin, err := store.NewDB(ctx, base, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, admin.Gorm.Exec("CREATE SCHEMA " + schema).Error)
	t.Cleanup(func() {
		admin.Gorm.Exec("DROP SCHEMA " + schema + " CASCADE")
		admin.Close()
	})

	dsn, err := withSearchPath(base, schema)
	require.NoError(t, err)
	db, err := store.NewDB(ctx, dsn, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db.Gorm
}

func withSearchPath(dsn, schema string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
