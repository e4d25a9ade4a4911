package testutil

import (
	"database/sql"
	"testing"

	"github.com/alexanderramin/examdesk/internal/db"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated in-memory client database holding the
// credentials and exam_drafts tables. It is closed with the test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// NewTestUoW wraps conn in the unit of work the session store writes through.
func NewTestUoW(conn *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(conn)
}
