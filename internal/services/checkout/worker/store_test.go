package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/services/checkout/worker"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/netprobe"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/sqlite"
)

type probeFunc func(ctx context.Context, timeout time.Duration) netprobe.Result

func (f probeFunc) Check(ctx context.Context, timeout time.Duration) netprobe.Result {
	return f(ctx, timeout)
}

type transmitFunc func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error)

func (f transmitFunc) Transmit(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
	return f(ctx, entry)
}

func online(context.Context, time.Duration) netprobe.Result {
	return netprobe.Result{Reachable: true}
}

func offline(context.Context, time.Duration) netprobe.Result {
	return netprobe.Result{}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	return openStore(t, filepath.Join(t.TempDir(), "pdv.db"))
}

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func commitSale(t *testing.T, s *sqlite.Store, createdAt time.Time) int64 {
	t.Helper()
	var saleID int64
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx checkout.SaleTx) error {
		sl := sale.FromDraft(sale.Draft{
			Total:         decimal.RequireFromString("42.50"),
			PaymentMethod: sale.PaymentPix,
			Items: []sale.DraftItem{
				{Description: "A", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.00")},
			},
		}, createdAt)
		id, err := tx.InsertSale(ctx, sl)
		if err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, id, sl.Items); err != nil {
			return err
		}
		entry, err := outbox.NewEntry(id, &fiscal.Signed{
			AccessKey: "35260312345678000195650010000000421530218417",
			Mode:      fiscal.ModeNormal,
			Payload:   []byte("<NFe>signed</NFe>"),
		}, createdAt)
		if err != nil {
			return err
		}
		_, err = tx.AppendOutbox(ctx, entry)
		saleID = id
		return err
	})
	require.NoError(t, err)
	return saleID
}

func TestWorker_SyncsPendingEntry(t *testing.T) {
	s := newStore(t)
	saleID := commitSale(t, s, time.Now())

	transmitter := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		return &outbox.Receipt{Protocol: "135260000000001"}, nil
	})
	w := worker.New(s, probeFunc(online), transmitter, worker.Config{}, testLogger())

	result := w.Tick(context.Background())
	assert.Equal(t, 1, result.Synced)

	entry, err := s.EntryBySale(context.Background(), saleID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusSynced, entry.Status)
	assert.Equal(t, "135260000000001", entry.Protocol)
	assert.NotNil(t, entry.ResolvedAt)
	assert.Zero(t, entry.Attempts)

	// Synced entries are never scanned again.
	result = w.Tick(context.Background())
	assert.Zero(t, result.Attempted)
}

func TestWorker_FailureThenRetry(t *testing.T) {
	s := newStore(t)
	saleID := commitSale(t, s, time.Now())

	fail := true
	var seen []string
	transmitter := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		seen = append(seen, entry.MessageID.String())
		if fail {
			return nil, errors.New("authority timeout")
		}
		return &outbox.Receipt{Protocol: "p"}, nil
	})
	w := worker.New(s, probeFunc(online), transmitter, worker.Config{}, testLogger())

	result := w.Tick(context.Background())
	assert.Equal(t, 1, result.Failed)

	entry, err := s.EntryBySale(context.Background(), saleID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
	assert.Equal(t, "authority timeout", entry.LastError)

	fail = false
	result = w.Tick(context.Background())
	assert.Equal(t, 1, result.Synced)

	entry, err = s.EntryBySale(context.Background(), saleID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusSynced, entry.Status)
	assert.Equal(t, 1, entry.Attempts)

	// The same signed entry was replayed, not a new one.
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}

func TestWorker_OfflineLeavesQueueUntouched(t *testing.T) {
	s := newStore(t)
	saleID := commitSale(t, s, time.Now())

	transmitter := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		t.Fatal("Transmit should not be called while offline")
		return nil, nil
	})
	w := worker.New(s, probeFunc(offline), transmitter, worker.Config{}, testLogger())

	for i := 0; i < 3; i++ {
		assert.False(t, w.Tick(context.Background()).Reachable)
	}

	entry, err := s.EntryBySale(context.Background(), saleID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, entry.Status)
	assert.Zero(t, entry.Attempts)
	assert.Nil(t, entry.ResolvedAt)
}

func TestWorker_DrainsInCreationOrder(t *testing.T) {
	s := newStore(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	third := commitSale(t, s, base.Add(3*time.Second))
	first := commitSale(t, s, base.Add(1*time.Second))
	second := commitSale(t, s, base.Add(2*time.Second))

	var order []int64
	transmitter := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		order = append(order, entry.SaleID)
		return &outbox.Receipt{Protocol: "p"}, nil
	})
	w := worker.New(s, probeFunc(online), transmitter, worker.Config{BatchSize: 3}, testLogger())

	result := w.Tick(context.Background())
	assert.Equal(t, 3, result.Synced)
	assert.Equal(t, []int64{first, second, third}, order)
}

// Two workers on separate handles of one file stand in for `pdv serve`
// and `pdv drain` running side by side.
func TestWorker_OneDrainAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdv.db")
	serveStore := openStore(t, path)
	drainStore := openStore(t, path)
	saleID := commitSale(t, serveStore, time.Now())

	inFlight := make(chan struct{})
	unblock := make(chan struct{})
	var transmissions atomic.Int32
	slow := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		if transmissions.Add(1) == 1 {
			close(inFlight)
		}
		<-unblock
		return nil, errors.New("authority timeout")
	})

	serving := worker.New(serveStore, probeFunc(online), slow, worker.Config{}, testLogger())
	draining := worker.New(drainStore, probeFunc(online), slow, worker.Config{}, testLogger())

	first := make(chan worker.TickResult, 1)
	go func() { first <- serving.Tick(context.Background()) }()
	<-inFlight

	second := draining.Tick(context.Background())
	assert.True(t, second.Skipped)
	assert.True(t, second.Reachable)
	assert.Zero(t, second.Attempted)

	close(unblock)
	result := <-first
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, int32(1), transmissions.Load())
	entry, err := drainStore.EntryBySale(context.Background(), saleID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)

	// Once the first drain is done the other handle can drain.
	accept := transmitFunc(func(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
		return &outbox.Receipt{Protocol: "p"}, nil
	})
	draining = worker.New(drainStore, probeFunc(online), accept, worker.Config{}, testLogger())
	assert.Equal(t, 1, draining.Tick(context.Background()).Synced)
}
