// Package tx carries a *sql.Tx through context so stores join an open
// transaction without changing their signatures.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// With returns a context carrying the transaction. A nil tx is ignored.
func With(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the transaction from context if one is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(txKey).(*sql.Tx)
	return t, ok
}

// Run executes fn inside a transaction placed on the context. The transaction
// commits when fn returns nil and rolls back otherwise.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(With(ctx, t)); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
