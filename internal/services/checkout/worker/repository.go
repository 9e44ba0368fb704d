package worker

import (
	"context"
	"time"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/netprobe"
)

// OutboxReader reads and resolves sync queue entries.
type OutboxReader interface {
	FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkSynced(ctx context.Context, id int64, protocol string) error
	MarkAttemptFailed(ctx context.Context, id int64, reason string) error

	// TryLockDrain claims the queue for one drain across every worker
	// sharing the store, in this process or any other. ok is false when
	// another drain holds it. A holder that dies keeps the claim for at
	// most lease.
	TryLockDrain(ctx context.Context, lease time.Duration) (release func(), ok bool, err error)
}

// Prober decides whether a scan is worth running.
// This interface is satisfied by netprobe.Prober.
type Prober interface {
	Check(ctx context.Context, timeout time.Duration) netprobe.Result
}

// Transmitter sends one signed document upstream.
// Satisfied by relay.Client and authority.Client.
type Transmitter interface {
	Transmit(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error)
}
