package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/laborsched/internal/domain"
)

// AdvisoryLocker serialises writers on one resource and date across processes
// using session-level Postgres advisory locks.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLocker constructs an AdvisoryLocker.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// Lock blocks until the advisory lock for key is held or ctx is done.
// The connection stays checked out until unlock is called.
func (l *AdvisoryLocker) Lock(ctx context.Context, key domain.LockKey) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	name := key.String()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtextextended($1, 0))", name); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", name, err)
	}

	return func() {
		// Unlock on a fresh context so a cancelled request still frees the lock.
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, 0))", name); err != nil {
			// Closing the session drops any advisory locks it holds.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}

var _ domain.Locker = (*AdvisoryLocker)(nil)
