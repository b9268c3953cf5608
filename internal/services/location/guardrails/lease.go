// Package guardrails provides the single writer lease and run budgets for normalization
package guardrails

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"locnorm/internal/modkit"
	perr "locnorm/internal/platform/errors"
	"locnorm/internal/platform/logger"
	"locnorm/internal/platform/store"
)

// ErrLeaseHeld signals another run owns the entity already
var ErrLeaseHeld = perr.New(perr.ErrorCodeLeaseHeld, "location: entity lease already held")

// LeaseFunc runs do while holding the lease for entity
type LeaseFunc func(ctx context.Context, entity string, do func(context.Context) error) error

// DefaultLeaseTTL bounds how long a crashed run keeps others out
const DefaultLeaseTTL = 30 * time.Minute

// MakeLease claims normalization_leases rows for one owner.
// An expired row is taken over; a live one makes the call return ErrLeaseHeld.
// The lease is released after do returns, whatever its outcome.
func MakeLease(deps modkit.Deps, owner uuid.UUID, ttl time.Duration) LeaseFunc {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	toInterval := func(d time.Duration) string { return fmt.Sprintf("%d seconds", int64(d/time.Second)) }

	return func(ctx context.Context, entity string, do func(context.Context) error) error {
		var claimed bool
		if err := deps.MustPG().Tx(ctx, func(q store.RowQuerier) error {
			rows, err := q.Query(ctx, `
				INSERT INTO normalization_leases (entity, owner, acquired_at, expires_at)
				VALUES ($1, $2, now(), now() + ($3)::interval)
				ON CONFLICT (entity) DO UPDATE
				   SET owner = EXCLUDED.owner, acquired_at = now(), expires_at = EXCLUDED.expires_at
				 WHERE normalization_leases.expires_at < now()
				RETURNING true
			`, entity, owner, toInterval(ttl))
			if err != nil {
				return err
			}
			defer rows.Close()
			claimed = rows.Next()
			return rows.Err()
		}); err != nil {
			return perr.FromPostgres(err, "lease acquire")
		}
		if !claimed {
			return perr.WithField(perr.Wrapf(ErrLeaseHeld, perr.ErrorCodeLeaseHeld, "%s are being normalized by another run", entity), entity)
		}

		defer func() {
			// release on a fresh context so a canceled run still frees the row
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_, err := deps.MustPG().Exec(rctx,
				`DELETE FROM normalization_leases WHERE entity = $1 AND owner = $2`, entity, owner)
			if err != nil {
				logger.C(ctx).Warn().Err(err).Str("entity", entity).Msg("lease release failed")
			}
		}()
		return do(ctx)
	}
}

// NoLease runs do directly
func NoLease(ctx context.Context, _ string, do func(context.Context) error) error { return do(ctx) }
