package store

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so repository functions
// can run standalone or inside a unit of work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// a nil error and rolls back otherwise; driver errors come back classified
// (see Classify) and errors produced by fn itself are passed through.
func InTx[T any](ctx context.Context, db Beginner, opts *sql.TxOptions, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return zero, classify(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := fn(tx)
	if err != nil {
		return zero, classify(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return zero, classify(ctx, err)
	}

	return result, nil
}

var serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

// Serializable returns options for a serializable read-write transaction.
func Serializable() *sql.TxOptions {
	return serializable
}
