package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertChannel is the NOTIFY channel raised by the sync queue insert trigger.
const InsertChannel = "vendas_sync_queue_insert"

const reconnectDelay = time.Second

// Listener turns sync queue inserts into nudges for the sync worker.
// It holds a dedicated connection outside the pool, since LISTEN keeps
// the connection busy indefinitely.
type Listener struct {
	databaseURL string
	nudge       func()
	logger      *slog.Logger
}

// NewListener creates a Listener that calls nudge for every insert notification.
func NewListener(databaseURL string, nudge func(), logger *slog.Logger) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		nudge:       nudge,
		logger:      logger.With("component", "sync-queue-listener"),
	}
}

// Run listens until ctx is cancelled, reconnecting after connection errors.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listening for sync queue inserts", "channel", InsertChannel)

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("sync queue listener stopped")
			return nil
		}
		l.logger.Error("error waiting for notification", "error", err)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create LISTEN connection: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+InsertChannel); err != nil {
		return fmt.Errorf("failed to LISTEN: %w", err)
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		l.logger.Debug("received NOTIFY", "payload", notification.Payload)
		l.nudge()
	}
}
