// Package repokit provides common types and helpers for repository implementations
package repokit

import (
	"context"

	"locnorm/internal/platform/store"
)

// Queryer is the minimal read and write surface for SQL repos
type Queryer = store.RowQuerier

// TxRunner can execute a function inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows are the result set of a query
	Rows = store.Rows

	// Row is a single row result from a query
	Row = store.Row

	// CommandTag is the result of a command that modifies data
	CommandTag = store.CommandTag
)

// WithTx runs fn inside a transaction, re-running it on serialization conflicts,
// and hands fn a repo already bound to the tx
func WithTx[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(r T) error) error {
	return store.RunTx(ctx, tx, store.DefaultRetry, func(q Queryer) error {
		return fn(MustBind(b, q))
	})
}
