package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

type saleTx struct {
	tx pgx.Tx
}

// InsertSale writes the sale header and returns the assigned id.
func (t *saleTx) InsertSale(ctx context.Context, s *sale.Sale) (int64, error) {
	query := `
		INSERT INTO vendas (total, payment_method, tax_icms, tax_pis, tax_cofins, status, offline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := t.tx.QueryRow(ctx, query,
		s.Total.String(),
		string(s.PaymentMethod),
		s.Taxes.ICMS.String(),
		s.Taxes.PIS.String(),
		s.Taxes.COFINS.String(),
		string(s.Status),
		s.Offline,
		s.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sale: %w", err)
	}
	return id, nil
}

// InsertItems writes every line of the sale in one round trip.
func (t *saleTx) InsertItems(ctx context.Context, saleID int64, items []sale.LineItem) error {
	query := `
		INSERT INTO venda_items (venda_id, description, quantity, unit_price, total, tax_icms, tax_pis, tax_cofins)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			saleID,
			item.Description,
			item.Quantity.String(),
			item.UnitPrice.String(),
			item.Total.String(),
			item.Taxes.ICMS.String(),
			item.Taxes.PIS.String(),
			item.Taxes.COFINS.String(),
		)
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert item %d: %w", i+1, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert items: %w", err)
	}
	return nil
}

// AppendOutbox writes the PENDING entry for the sale. The AFTER INSERT
// trigger notifies listeners once the transaction commits.
func (t *saleTx) AppendOutbox(ctx context.Context, entry *outbox.Entry) (int64, error) {
	query := `
		INSERT INTO vendas_sync_queue (venda_id, message_id, access_key, mode, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING id
	`

	var id int64
	err := t.tx.QueryRow(ctx, query,
		entry.SaleID,
		entry.MessageID.String(),
		entry.AccessKey,
		string(entry.Mode),
		entry.Payload,
		string(outbox.StatusPending),
		entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append outbox entry: %w", err)
	}
	return id, nil
}

var _ checkout.SaleTx = (*saleTx)(nil)
