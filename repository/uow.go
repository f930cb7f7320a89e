package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// UnitOfWork runs a function inside one store transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork returns a UnitOfWork bound to db.
func NewUnitOfWork(db *sql.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx executes fn within a transaction carried in ctx. Every repository call made
// with that ctx joins the transaction. Nested calls reuse the outer transaction. The
// transaction is rolled back when fn returns an error or panics.
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// TxFromContext returns the transaction started by WithinTx, if any.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// conn picks the transaction in ctx when present, the pool otherwise.
func conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}
