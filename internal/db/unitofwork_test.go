package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/examdesk/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUoW(t *testing.T) (*db.SQLiteUnitOfWork, func(key string) bool) {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	exists := func(key string) bool {
		var n int
		require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM credentials WHERE key = ?`, key).Scan(&n))
		return n > 0
	}
	return db.NewSQLiteUnitOfWork(database), exists
}

func insertKey(ctx context.Context, tx db.DBTX, key string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, 'v', '2026-01-01T00:00:00Z')`, key)
	return err
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow, exists := newUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return insertKey(ctx, tx, "accessToken")
	})
	require.NoError(t, err)
	assert.True(t, exists("accessToken"))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow, exists := newUoW(t)
	boom := errors.New("deliberate failure")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		require.NoError(t, insertKey(ctx, tx, "accessToken"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, exists("accessToken"), "row should not survive the rollback")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow, exists := newUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertKey(ctx, tx, "refreshToken")
			panic("boom")
		})
	})
	assert.False(t, exists("refreshToken"))
}
