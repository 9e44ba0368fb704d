package worker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/netprobe"
)

// mockOutboxReader implements OutboxReader for testing.
type mockOutboxReader struct {
	FetchPendingFn      func(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkSyncedFn        func(ctx context.Context, id int64, protocol string) error
	MarkAttemptFailedFn func(ctx context.Context, id int64, reason string) error
	TryLockDrainFn      func(ctx context.Context, lease time.Duration) (func(), bool, error)
}

func (m *mockOutboxReader) FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	return m.FetchPendingFn(ctx, limit)
}

func (m *mockOutboxReader) MarkSynced(ctx context.Context, id int64, protocol string) error {
	return m.MarkSyncedFn(ctx, id, protocol)
}

func (m *mockOutboxReader) MarkAttemptFailed(ctx context.Context, id int64, reason string) error {
	return m.MarkAttemptFailedFn(ctx, id, reason)
}

// TryLockDrain grants the lock when TryLockDrainFn is unset.
func (m *mockOutboxReader) TryLockDrain(ctx context.Context, lease time.Duration) (func(), bool, error) {
	if m.TryLockDrainFn == nil {
		return func() {}, true, nil
	}
	return m.TryLockDrainFn(ctx, lease)
}

// mockProber implements Prober for testing.
type mockProber struct {
	CheckFn func(ctx context.Context, timeout time.Duration) netprobe.Result
}

func (m *mockProber) Check(ctx context.Context, timeout time.Duration) netprobe.Result {
	return m.CheckFn(ctx, timeout)
}

// mockTransmitter implements Transmitter for testing.
type mockTransmitter struct {
	TransmitFn func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error)
}

func (m *mockTransmitter) Transmit(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
	return m.TransmitFn(ctx, entry)
}

func reachable() *mockProber {
	return &mockProber{
		CheckFn: func(ctx context.Context, timeout time.Duration) netprobe.Result {
			return netprobe.Result{Reachable: true, Target: "tcp://test"}
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
