package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/clock"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
)

const entryColumns = `
	id, venda_id, message_id::text, access_key, mode, payload, status, attempts,
	COALESCE(last_error, ''), COALESCE(protocol, ''), created_at, resolved_at
`

// FetchPending returns up to limit PENDING entries, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM vendas_sync_queue
		WHERE status = 'PENDING'
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var entries []outbox.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue rows: %w", err)
	}

	return entries, nil
}

// EntryBySale returns the entry written for a sale.
func (s *Store) EntryBySale(ctx context.Context, saleID int64) (*outbox.Entry, error) {
	query := `SELECT` + entryColumns + `FROM vendas_sync_queue WHERE venda_id = $1`

	entry, err := scanEntry(s.pool.QueryRow(ctx, query, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbox.ErrNotFound
	}
	return entry, err
}

// MarkSynced moves a PENDING entry to SYNCED. Repeating it is a no-op.
func (s *Store) MarkSynced(ctx context.Context, id int64, protocol string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vendas_sync_queue
		SET status = 'SYNCED', protocol = $1, resolved_at = $2
		WHERE id = $3 AND status = 'PENDING'
	`, protocol, clock.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark entry synced: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	status, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	if status != outbox.StatusSynced {
		s.logger.Warn("entry not pending, leaving as is", "entry_id", id, "status", status)
	}
	return nil
}

// MarkAttemptFailed counts a failed transmission. The entry stays PENDING.
func (s *Store) MarkAttemptFailed(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vendas_sync_queue
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2 AND status = 'PENDING'
	`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	status, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debug("ignoring failed attempt for resolved entry", "entry_id", id, "status", status)
	return nil
}

// MarkFailedPermanent is the operator escalation path.
func (s *Store) MarkFailedPermanent(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vendas_sync_queue
		SET status = 'FAILED_PERMANENT', last_error = $1, resolved_at = $2
		WHERE id = $3 AND status = 'PENDING'
	`, reason, clock.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark entry failed: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := s.status(ctx, id); err != nil {
		return err
	}
	return outbox.ErrNotPending
}

func (s *Store) status(ctx context.Context, id int64) (outbox.Status, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM vendas_sync_queue WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", outbox.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read entry status: %w", err)
	}
	return outbox.Status(status), nil
}

func scanEntry(row pgx.Row) (*outbox.Entry, error) {
	var (
		entry      outbox.Entry
		messageID  string
		mode       string
		status     string
		resolvedAt *time.Time
	)

	err := row.Scan(
		&entry.ID, &entry.SaleID, &messageID, &entry.AccessKey, &mode,
		&entry.Payload, &status, &entry.Attempts, &entry.LastError, &entry.Protocol,
		&entry.CreatedAt, &resolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sync queue row: %w", err)
	}

	entry.MessageID, err = uuid.FromString(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message id: %w", err)
	}
	entry.Mode = fiscal.Mode(mode)
	entry.Status = outbox.Status(status)
	entry.CreatedAt = entry.CreatedAt.UTC()
	if resolvedAt != nil {
		t := resolvedAt.UTC()
		entry.ResolvedAt = &t
	}
	return &entry, nil
}
