// Package outbox defines the sync queue entry written alongside every sale.
package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
)

var (
	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("outbox entry not found")
	// ErrNotPending is returned when escalating an entry that already left PENDING.
	ErrNotPending = errors.New("outbox entry is not pending")
)

// Status of an entry in the sync queue.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSynced          Status = "SYNCED"
	StatusFailedPermanent Status = "FAILED_PERMANENT"
)

// Entry is one row of vendas_sync_queue. Payload is written once at
// commit and never changes; MessageID is the idempotency key sent on
// every transmission attempt.
type Entry struct {
	ID         int64
	SaleID     int64
	MessageID  uuid.UUID
	AccessKey  string
	Mode       fiscal.Mode
	Payload    []byte
	Status     Status
	Attempts   int
	LastError  string
	Protocol   string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Receipt is what the authority or relay returns for an accepted document.
type Receipt struct {
	Protocol string
}

// NewEntry creates a PENDING entry for a signed document.
func NewEntry(saleID int64, signed *fiscal.Signed, createdAt time.Time) (*Entry, error) {
	if signed == nil || len(signed.Payload) == 0 {
		return nil, errors.New("signed document is required")
	}

	messageID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	return &Entry{
		SaleID:    saleID,
		MessageID: messageID,
		AccessKey: signed.AccessKey,
		Mode:      signed.Mode,
		Payload:   signed.Payload,
		Status:    StatusPending,
		CreatedAt: createdAt,
	}, nil
}
