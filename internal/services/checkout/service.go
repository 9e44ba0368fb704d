package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/clock"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

// ErrNoWorker is returned by Nudge when no sync worker is attached.
var ErrNoWorker = errors.New("sync worker not running")

// Options configures optional service behaviour.
type Options struct {
	// Nudger is told after every commit. May be nil; the worker's own
	// timer picks the entry up anyway.
	Nudger Nudger
	// DegradedCommit answers persistence failures with a synthetic
	// success. Never enabled in production.
	DegradedCommit bool
}

// Service commits sales together with their signed documents.
type Service struct {
	repo    Repository
	builder DocumentBuilder
	opts    Options
	logger  *slog.Logger
}

// NewService creates a new checkout service.
func NewService(repo Repository, builder DocumentBuilder, opts Options, logger *slog.Logger) *Service {
	logger = logger.With("service", "checkout")
	if opts.DegradedCommit {
		logger.Warn("degraded commit enabled: persistence failures will be answered with synthetic sale ids")
	}
	return &Service{
		repo:    repo,
		builder: builder,
		opts:    opts,
		logger:  logger,
	}
}

// FinalizeItem is one cart line as sent by the checkout UI.
type FinalizeItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// FinalizeRequest is the checkout UI's finalize-sale call.
type FinalizeRequest struct {
	Total         decimal.Decimal `json:"total"`
	Items         []FinalizeItem  `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	Offline       bool            `json:"offline"`
}

// FinalizeResponse is returned for every finalize call.
type FinalizeResponse struct {
	Success  bool   `json:"success"`
	SaleID   int64  `json:"sale_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// SyncStatusResponse describes the sync queue entry of a sale.
type SyncStatusResponse struct {
	SaleID     int64      `json:"sale_id"`
	EntryID    int64      `json:"entry_id"`
	MessageID  string     `json:"message_id"`
	AccessKey  string     `json:"access_key"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	Protocol   string     `json:"protocol,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Draft converts the request into a sale draft.
func (r *FinalizeRequest) Draft() sale.Draft {
	d := sale.Draft{
		Total:         r.Total,
		PaymentMethod: sale.PaymentMethod(r.PaymentMethod),
		Offline:       r.Offline,
		Items:         make([]sale.DraftItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		d.Items = append(d.Items, sale.DraftItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
		})
	}
	return d
}

// Finalize validates and commits a sale for the UI. The response always
// carries the outcome; err is also set when the sale was not saved so
// the caller can pick a status code.
func (s *Service) Finalize(ctx context.Context, req *FinalizeRequest) (*FinalizeResponse, error) {
	saleID, err := s.Commit(ctx, req.Draft())
	if err == nil {
		return &FinalizeResponse{Success: true, SaleID: saleID}, nil
	}

	var commitErr *CommitError
	if s.opts.DegradedCommit && errors.As(err, &commitErr) {
		synthetic := -clock.Now().UnixMilli()
		s.logger.Error("DEGRADED COMMIT: sale was NOT saved, answering with synthetic id",
			"synthetic_sale_id", synthetic,
			"op", commitErr.Op,
			"error", err,
		)
		return &FinalizeResponse{Success: true, SaleID: synthetic, Degraded: true}, nil
	}

	return &FinalizeResponse{Success: false, Error: err.Error()}, err
}

// Commit stores the sale, its items and its signed document as one unit.
// Either all of it is stored with a PENDING sync entry, or none of it is.
func (s *Service) Commit(ctx context.Context, draft sale.Draft) (int64, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}

	mode := fiscal.ModeNormal
	if draft.Offline {
		mode = fiscal.ModeContingency
	}

	var sl *sale.Sale
	var signed *fiscal.Signed
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx SaleTx) error {
		// Stamped while the store serialises commits, so created_at order
		// matches the order of assigned ids and document numbers.
		sl = sale.FromDraft(draft, clock.Now())

		id, err := tx.InsertSale(ctx, sl)
		if err != nil {
			return &CommitError{Op: OpInsertSale, Err: err}
		}
		sl.ID = id

		if err := tx.InsertItems(ctx, id, sl.Items); err != nil {
			return &CommitError{Op: OpInsertItems, Err: err}
		}

		doc, err := s.builder.Build(fiscal.FactsFromSale(sl), mode)
		if err != nil {
			return err
		}
		signed, err = s.builder.Sign(doc)
		if err != nil {
			return err
		}

		entry, err := outbox.NewEntry(id, signed, sl.CreatedAt)
		if err != nil {
			return &CommitError{Op: OpAppendOutbox, Err: err}
		}
		if _, err := tx.AppendOutbox(ctx, entry); err != nil {
			return &CommitError{Op: OpAppendOutbox, Err: err}
		}
		return nil
	})
	if err != nil {
		var commitErr *CommitError
		var signingErr *fiscal.SigningError
		if !errors.As(err, &commitErr) && !errors.As(err, &signingErr) {
			err = &CommitError{Op: OpTransaction, Err: err}
		}
		s.logger.Error("sale not committed",
			"total", draft.Total.String(),
			"payment_method", draft.PaymentMethod,
			"error", err,
		)
		return 0, err
	}

	s.logger.Info("sale committed",
		"sale_id", sl.ID,
		"total", sl.Total.String(),
		"payment_method", sl.PaymentMethod,
		"mode", signed.Mode,
		"access_key", signed.AccessKey,
	)

	if s.opts.Nudger != nil {
		s.opts.Nudger.Nudge()
	}

	return sl.ID, nil
}

// SyncStatus returns the sync queue entry of a sale.
func (s *Service) SyncStatus(ctx context.Context, saleID int64) (*SyncStatusResponse, error) {
	entry, err := s.repo.EntryBySale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync status: %w", err)
	}

	return &SyncStatusResponse{
		SaleID:     entry.SaleID,
		EntryID:    entry.ID,
		MessageID:  entry.MessageID.String(),
		AccessKey:  entry.AccessKey,
		Mode:       string(entry.Mode),
		Status:     string(entry.Status),
		Attempts:   entry.Attempts,
		LastError:  entry.LastError,
		Protocol:   entry.Protocol,
		CreatedAt:  entry.CreatedAt,
		ResolvedAt: entry.ResolvedAt,
	}, nil
}

// Nudge asks the sync worker for an immediate tick.
func (s *Service) Nudge() error {
	if s.opts.Nudger == nil {
		return ErrNoWorker
	}
	s.opts.Nudger.Nudge()
	return nil
}
