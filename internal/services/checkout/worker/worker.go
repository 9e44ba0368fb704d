// Package worker drains the sync queue in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
)

// State is the phase of the worker loop.
type State string

const (
	StateIdle     State = "IDLE"
	StateScanning State = "SCANNING"
	StateDraining State = "DRAINING"
)

const (
	stateIdle int32 = iota
	stateScanning
	stateDraining
)

// ErrAlreadyStarted is returned by Start on a running worker.
var ErrAlreadyStarted = errors.New("worker already started")

var errNoReceipt = errors.New("transmitter returned no receipt")

// Config holds configuration for the sync worker.
type Config struct {
	Interval        time.Duration
	BatchSize       int
	ProbeTimeout    time.Duration
	TransmitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.TransmitTimeout <= 0 {
		c.TransmitTimeout = 15 * time.Second
	}
	return c
}

// TickResult summarises one tick.
type TickResult struct {
	// Skipped is set when another tick, in this process or another, was
	// already draining the queue.
	Skipped   bool
	Reachable bool
	Attempted int
	Synced    int
	Failed    int
	// Err is set when the queue could not be locked or the pending batch
	// could not be fetched.
	Err error
}

// Worker polls the sync queue and transmits pending entries in creation
// order. At most one tick runs at a time.
type Worker struct {
	outbox      OutboxReader
	prober      Prober
	transmitter Transmitter
	config      Config
	logger      *slog.Logger

	state  atomic.Int32
	nudges chan struct{}

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	ticks    sync.WaitGroup
}

// New creates a new sync worker.
func New(
	outbox OutboxReader,
	prober Prober,
	transmitter Transmitter,
	config Config,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		outbox:      outbox,
		prober:      prober,
		transmitter: transmitter,
		config:      config.withDefaults(),
		logger:      logger.With("component", "sync-worker"),
		nudges:      make(chan struct{}, 1),
	}
}

// State returns the current loop phase.
func (w *Worker) State() State {
	switch w.state.Load() {
	case stateScanning:
		return StateScanning
	case stateDraining:
		return StateDraining
	default:
		return StateIdle
	}
}

// Start arms the timer. The first tick runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	w.logger.Info("starting sync worker",
		"interval", w.config.Interval,
		"batch_size", w.config.BatchSize,
		"probe_timeout", w.config.ProbeTimeout,
		"transmit_timeout", w.config.TransmitTimeout,
	)

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.loopDone = make(chan struct{})

	go w.loop(loopCtx, w.loopDone)
	return nil
}

// Stop disarms the timer and waits for an in-flight tick to finish.
// The tick itself is not cancelled; ctx only bounds the wait.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return nil
	}

	w.cancel()
	<-w.loopDone
	w.cancel = nil

	done := make(chan struct{})
	go func() {
		w.ticks.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("sync worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nudge asks for a tick now instead of at the next interval. Repeated
// nudges before the loop picks one up collapse into one.
func (w *Worker) Nudge() {
	select {
	case w.nudges <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.spawnTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.spawnTick(ctx)
		case <-w.nudges:
			w.logger.Debug("nudged")
			w.spawnTick(ctx)
		}
	}
}

// spawnTick runs a tick without blocking the loop, so a tick that fires
// while another is running is dropped by the guard rather than queued.
// The tick is detached from ctx so stopping never interrupts a drain.
func (w *Worker) spawnTick(ctx context.Context) {
	w.ticks.Add(1)
	go func() {
		defer w.ticks.Done()
		w.Tick(context.WithoutCancel(ctx))
	}()
}

// Tick runs one scan and, when the probe succeeds, one drain.
func (w *Worker) Tick(ctx context.Context) TickResult {
	if !w.state.CompareAndSwap(stateIdle, stateScanning) {
		w.logger.Debug("tick dropped, worker busy", "state", w.State())
		return TickResult{Skipped: true}
	}
	defer w.state.Store(stateIdle)

	probe := w.prober.Check(ctx, w.config.ProbeTimeout)
	if !probe.Reachable {
		w.logger.Info("offline, skipping scan", "elapsed", probe.Elapsed, "error", probe.Err)
		return TickResult{}
	}

	result := TickResult{Reachable: true}

	release, ok, err := w.outbox.TryLockDrain(ctx, w.lease())
	if err != nil {
		w.logger.Error("failed to lock sync queue", "error", err)
		result.Err = err
		return result
	}
	if !ok {
		w.logger.Info("sync queue held by another drain")
		result.Skipped = true
		return result
	}
	defer release()

	entries, err := w.outbox.FetchPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to fetch pending entries", "error", err)
		result.Err = err
		return result
	}
	if len(entries) == 0 {
		return result
	}

	w.state.Store(stateDraining)
	w.logger.Debug("draining sync queue", "count", len(entries))

	for i := range entries {
		result.Attempted++
		if w.transmit(ctx, &entries[i]) {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	w.logger.Info("drain complete",
		"attempted", result.Attempted,
		"synced", result.Synced,
		"failed", result.Failed,
	)
	return result
}

// lease bounds how long a crashed drain keeps the queue locked: long
// enough for a full batch of timed out transmissions.
func (w *Worker) lease() time.Duration {
	return time.Duration(w.config.BatchSize)*w.config.TransmitTimeout + time.Minute
}

// transmit sends one entry and records the outcome. It reports whether
// the entry ended up SYNCED.
func (w *Worker) transmit(ctx context.Context, entry *outbox.Entry) bool {
	logger := w.logger.With(
		"entry_id", entry.ID,
		"sale_id", entry.SaleID,
		"access_key", entry.AccessKey,
		"attempts", entry.Attempts,
	)

	callCtx, cancel := context.WithTimeout(ctx, w.config.TransmitTimeout)
	receipt, err := w.transmitter.Transmit(callCtx, entry)
	cancel()
	if err == nil && receipt == nil {
		err = errNoReceipt
	}

	if err != nil {
		logger.Warn("transmission failed, will retry", "error", err)
		if err := w.outbox.MarkAttemptFailed(ctx, entry.ID, err.Error()); err != nil {
			logger.Error("failed to record failed attempt", "error", err)
		}
		return false
	}

	if err := w.outbox.MarkSynced(ctx, entry.ID, receipt.Protocol); err != nil {
		// Stays PENDING and is resent; the message id lets upstream drop the duplicate.
		logger.Error("failed to mark entry synced", "protocol", receipt.Protocol, "error", err)
		return false
	}

	logger.Info("entry synced", "protocol", receipt.Protocol)
	return true
}
