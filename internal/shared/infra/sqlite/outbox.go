package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/clock"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
)

const entryColumns = `
	id, venda_id, message_id, access_key, mode, payload, status, attempts,
	COALESCE(last_error, ''), COALESCE(protocol, ''), created_at, resolved_at
`

// FetchPending returns up to limit PENDING entries, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM vendas_sync_queue
		WHERE status = 'PENDING'
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
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
	query := `SELECT` + entryColumns + `FROM vendas_sync_queue WHERE venda_id = ?`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, saleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outbox.ErrNotFound
	}
	return entry, err
}

// MarkSynced moves a PENDING entry to SYNCED. Calling it again for an
// already synced entry is a no-op and keeps the first resolution time.
func (s *Store) MarkSynced(ctx context.Context, id int64, protocol string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vendas_sync_queue
		SET status = 'SYNCED', protocol = ?, resolved_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, protocol, clock.Now().UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("failed to mark entry synced: %w", err)
	}

	if affected(res) > 0 {
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
	res, err := s.db.ExecContext(ctx, `
		UPDATE vendas_sync_queue
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ? AND status = 'PENDING'
	`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}

	if affected(res) > 0 {
		return nil
	}

	status, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debug("ignoring failed attempt for resolved entry", "entry_id", id, "status", status)
	return nil
}

// MarkFailedPermanent is the manual escalation path. The worker never calls it.
func (s *Store) MarkFailedPermanent(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vendas_sync_queue
		SET status = 'FAILED_PERMANENT', last_error = ?, resolved_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, reason, clock.Now().UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("failed to mark entry failed: %w", err)
	}

	if affected(res) > 0 {
		return nil
	}

	if _, err := s.status(ctx, id); err != nil {
		return err
	}
	return outbox.ErrNotPending
}

func (s *Store) status(ctx context.Context, id int64) (outbox.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM vendas_sync_queue WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", outbox.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read entry status: %w", err)
	}
	return outbox.Status(status), nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*outbox.Entry, error) {
	var (
		entry      outbox.Entry
		mode       string
		status     string
		createdAt  int64
		resolvedAt sql.NullInt64
	)

	err := row.Scan(
		&entry.ID, &entry.SaleID, &entry.MessageID, &entry.AccessKey, &mode,
		&entry.Payload, &status, &entry.Attempts, &entry.LastError, &entry.Protocol,
		&createdAt, &resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sync queue row: %w", err)
	}

	entry.Mode = fiscal.Mode(mode)
	entry.Status = outbox.Status(status)
	entry.CreatedAt = time.UnixMicro(createdAt).UTC()
	if resolvedAt.Valid {
		t := time.UnixMicro(resolvedAt.Int64).UTC()
		entry.ResolvedAt = &t
	}
	return &entry, nil
}
