package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

// saleTx implements checkout.SaleTx on a single sql.Tx.
type saleTx struct {
	tx *sql.Tx
}

// InsertSale writes the sale header and returns the assigned id.
func (t *saleTx) InsertSale(ctx context.Context, s *sale.Sale) (int64, error) {
	query := `
		INSERT INTO vendas (total, payment_method, tax_icms, tax_pis, tax_cofins, status, offline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := t.tx.ExecContext(ctx, query,
		s.Total.String(),
		string(s.PaymentMethod),
		s.Taxes.ICMS.String(),
		s.Taxes.PIS.String(),
		s.Taxes.COFINS.String(),
		string(s.Status),
		s.Offline,
		s.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sale: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sale id: %w", err)
	}
	return id, nil
}

// InsertItems writes every line of the sale.
func (t *saleTx) InsertItems(ctx context.Context, saleID int64, items []sale.LineItem) error {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO venda_items (venda_id, description, quantity, unit_price, total, tax_icms, tax_pis, tax_cofins)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		_, err := stmt.ExecContext(ctx,
			saleID,
			item.Description,
			item.Quantity.String(),
			item.UnitPrice.String(),
			item.Total.String(),
			item.Taxes.ICMS.String(),
			item.Taxes.PIS.String(),
			item.Taxes.COFINS.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %d: %w", i+1, err)
		}
	}
	return nil
}

// AppendOutbox writes the PENDING entry for the sale.
func (t *saleTx) AppendOutbox(ctx context.Context, entry *outbox.Entry) (int64, error) {
	query := `
		INSERT INTO vendas_sync_queue (venda_id, message_id, access_key, mode, payload, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`

	res, err := t.tx.ExecContext(ctx, query,
		entry.SaleID,
		entry.MessageID.String(),
		entry.AccessKey,
		string(entry.Mode),
		entry.Payload,
		string(outbox.StatusPending),
		entry.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append outbox entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	return id, nil
}

var _ checkout.SaleTx = (*saleTx)(nil)
