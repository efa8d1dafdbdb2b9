package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Tx wraps sqlx.Tx so nested WithTx calls map onto savepoints
type Tx struct {
	*sqlx.Tx
	depth int
	ID    string
}

// GetTx retrieves a transaction from the context if it exists
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

func (tx *Tx) savepoint() string {
	return fmt.Sprintf("sp_%d", tx.depth)
}

// BeginTx starts a transaction, or a savepoint when ctx already carries one
func (db *DB) BeginTx(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		db.logger.Debugw("creating savepoint", "tx_id", tx.ID, "savepoint", tx.savepoint())

		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+tx.savepoint()); err != nil {
			tx.depth--
			return ctx, nil, ierr.WithError(err).
				WithHint("Failed to create savepoint").
				Mark(ierr.ErrDatabase)
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID()}
	db.logger.Debugw("starting new transaction", "tx_id", tx.ID)

	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

// CommitTx commits the innermost level of the transaction on ctx
func (db *DB) CommitTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		db.logger.Debugw("releasing savepoint", "tx_id", tx.ID, "savepoint", tx.savepoint())
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+tx.savepoint()); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to release savepoint").
				Mark(ierr.ErrDatabase)
		}
		tx.depth--
		return nil
	}

	db.logger.Debugw("committing transaction", "tx_id", tx.ID)
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// RollbackTx rolls back the innermost level of the transaction on ctx
func (db *DB) RollbackTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		db.logger.Debugw("rolling back to savepoint", "tx_id", tx.ID, "savepoint", tx.savepoint())
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+tx.savepoint()); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to roll back to savepoint").
				Mark(ierr.ErrDatabase)
		}
		tx.depth--
		return nil
	}

	db.logger.Debugw("rolling back transaction", "tx_id", tx.ID)
	if err := tx.Rollback(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to roll back transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// WithTx executes fn within a transaction. The error returned by fn is passed
// through untouched so callers can still inspect its markers.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic in transaction", "tx_id", tx.ID, "panic", r)
			_ = db.RollbackTx(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		db.logger.Debugw("transaction failed", "tx_id", tx.ID, "error", err)
		if rbErr := db.RollbackTx(ctx); rbErr != nil {
			db.logger.Errorw("rollback failed", "tx_id", tx.ID, "error", rbErr, "cause", err)
		}
		return err
	}

	return db.CommitTx(ctx)
}
