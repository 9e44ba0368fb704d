package postgres

import (
	"context"
	"fmt"
	"time"
)

// TryLockDrain implements worker.OutboxReader with a session advisory
// lock held on one pooled connection for the length of the drain.
// Postgres drops the lock with the connection, so lease is not needed.
func (s *Store) TryLockDrain(ctx context.Context, _ time.Duration) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for drain lock: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, drainLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to acquire drain lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		ctx := context.Background()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, drainLockKey); err != nil {
			// A pooled session must not keep the lock.
			s.logger.Error("failed to release drain lock, closing connection", "error", err)
			_ = conn.Hijack().Close(ctx)
			return
		}
		conn.Release()
	}
	return release, true, nil
}
