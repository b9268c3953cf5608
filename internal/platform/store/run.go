package store

import (
	"context"
	"time"

	perr "locnorm/internal/platform/errors"
)

// RetryPolicy bounds how often RunTx re-runs a transaction that hit contention
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry retries serialization failures and deadlocks a few times
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

// RunTx runs fn inside tx, re-running the whole transaction when postgres
// reports a retryable conflict (serialization failure, deadlock, lock timeout)
func RunTx(ctx context.Context, tx TxRunner, pol RetryPolicy, fn func(q RowQuerier) error) error {
	attempts := max(pol.Attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		err = tx.Tx(ctx, fn)
		if err == nil || !perr.IsRetryable(err) {
			return err
		}
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pol.Backoff * time.Duration(i+1)):
			}
		}
	}
	return err
}
