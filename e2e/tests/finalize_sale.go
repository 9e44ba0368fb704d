package tests

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cornjacket/pdv-terminal/e2e/client"
	"github.com/cornjacket/pdv-terminal/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "finalize-sale",
		Description: "Finalize a sale and verify its sync entry is queued with a signed document",
		Run:         runFinalizeSaleTest,
	})
}

func runFinalizeSaleTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{TerminalURL: cfg.TerminalURL}

	if err := client.CheckHealth(ctx, cfg.TerminalURL); err != nil {
		return fmt.Errorf("terminal not healthy: %w", err)
	}

	// 1. Finalize a pix sale
	status, resp, err := client.FinalizeSale(ctx, c, &client.FinalizeRequest{
		Total:         "42.50",
		PaymentMethod: "pix",
		Items: []client.SaleItem{
			{Description: client.UniqueDescription("e2e-item"), Quantity: "2", Price: "10.00"},
			{Description: "Cafe", Quantity: "1", Price: "22.50"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to finalize sale: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("expected status 201, got %d (%s)", status, resp.Error)
	}
	if !resp.Success || resp.SaleID <= 0 {
		return fmt.Errorf("expected success with a positive sale_id, got %+v", resp)
	}
	if resp.Degraded {
		return fmt.Errorf("terminal answered with a degraded commit")
	}

	// 2. The sync entry exists as soon as the call returns
	entry, err := client.GetSyncStatus(ctx, c, resp.SaleID)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("no sync entry for sale %d", resp.SaleID)
	}

	if entry.Mode != "NORMAL" {
		return fmt.Errorf("expected mode NORMAL, got %s", entry.Mode)
	}
	if len(entry.AccessKey) != 44 {
		return fmt.Errorf("expected 44-digit access key, got %q", entry.AccessKey)
	}
	if entry.MessageID == "" {
		return fmt.Errorf("expected non-empty message_id")
	}
	if entry.Status != "PENDING" && entry.Status != "SYNCED" {
		return fmt.Errorf("unexpected entry status %s", entry.Status)
	}

	return nil
}
