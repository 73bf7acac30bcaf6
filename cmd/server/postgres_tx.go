package main

import (
	"context"
	"database/sql"
	"time"

	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	txcontext "civicpulse/pkg/platform/tx"
)

// postgresUserTx serializes writes for one user across every replica with a
// transaction-scoped advisory lock keyed by the user id. It satisfies both
// enrollment and rating tx ports.
type postgresUserTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresUserTx(db *sql.DB, timeout time.Duration) *postgresUserTx {
	return &postgresUserTx{db: db, timeout: timeout}
}

func (t *postgresUserTx) RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "acquire user lock")
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "commit transaction")
	}
	return nil
}
