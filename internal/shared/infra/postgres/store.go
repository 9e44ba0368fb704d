package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
)

// Advisory lock keys.
const (
	commitLockKey int64 = 0x706476_0001 // transaction-scoped, held by WithinTx
	drainLockKey  int64 = 0x706476_0002 // session-scoped, held by one drain
)

// Store implements checkout.Store on PostgreSQL.
// Used when the terminal runs against a back-office database instead of its local file.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With("store", "postgres"),
	}
}

// WithinTx implements checkout.SaleStore.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.SaleTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(context.WithoutCancel(ctx))

	// One commit at a time: sale ids, document numbers and created_at
	// must agree across terminals sharing this database.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, commitLockKey); err != nil {
		return fmt.Errorf("failed to lock sale commits: %w", err)
	}

	if err := fn(ctx, &saleTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ checkout.Store = (*Store)(nil)
