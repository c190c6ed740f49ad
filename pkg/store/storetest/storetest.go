// Package storetest provides migrated in-memory databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/stretchr/testify/require"
)

// NewSQLite returns an in-memory SQLite database with the full schema applied.
// The database is closed when the test finishes.
func NewSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		URL:    ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.RunMigrations(context.Background(), db))
	return db
}
