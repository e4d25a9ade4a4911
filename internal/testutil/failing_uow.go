package testutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/examdesk/internal/db"
)

// FailingUoW runs transactions on DB but makes the Nth write inside each
// transaction return Err. Reads are not counted. It lets tests prove that a
// multi-key write is all-or-nothing.
type FailingUoW struct {
	DB     *sql.DB
	FailOn int
	Err    error
}

func (u *FailingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(ctx, &failingTx{DBTX: tx, failOn: u.FailOn, err: u.Err}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type failingTx struct {
	db.DBTX
	writes int
	failOn int
	err    error
}

func (f *failingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.writes++
	if f.writes == f.failOn {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
