package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck verifies the pool reaches a writable primary. Audit events are
// appended, so a replica in recovery counts as unhealthy.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		var inRecovery bool
		if err := pool.QueryRow(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
			return errors.Join(ErrUnavailable, err)
		}
		if inRecovery {
			return ErrReadOnly
		}
		return nil
	}
}
