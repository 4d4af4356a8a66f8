package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork bundles ledger writes into a single database transaction.
type UnitOfWork struct {
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// Exec runs a statement inside the transaction.
func (u *UnitOfWork) Exec(ctx context.Context, query string, args ...any) error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	_, err := u.tx.ExecContext(ctx, query, args...)
	return err
}

// inTx runs fn in a unit of work and commits when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(u *UnitOfWork) error) error {
	u, err := db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer u.Rollback()

	if err := fn(u); err != nil {
		return err
	}
	return u.Commit()
}
