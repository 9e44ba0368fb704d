package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/clock"
)

// TryLockDrain implements worker.OutboxReader with a lease on the single
// sync_drain_lock row. Every handle on the file sees the same row, so a
// `pdv drain` run next to `pdv serve` cannot drain at the same time.
func (s *Store) TryLockDrain(ctx context.Context, lease time.Duration) (func(), bool, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate lock token: %w", err)
	}
	holder := token.String()

	now := clock.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_drain_lock
		SET holder = ?, expires_at = ?
		WHERE id = 1 AND (holder IS NULL OR expires_at <= ?)
	`, holder, now.Add(lease).UnixMicro(), now.UnixMicro())
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire drain lock: %w", err)
	}
	if affected(res) == 0 {
		return nil, false, nil
	}

	release := func() {
		_, err := s.db.ExecContext(context.Background(), `
			UPDATE sync_drain_lock SET holder = NULL, expires_at = 0
			WHERE id = 1 AND holder = ?
		`, holder)
		if err != nil {
			s.logger.Error("failed to release drain lock", "error", err)
		}
	}
	return release, true, nil
}
