package tests

import (
	"context"
	"fmt"

	"github.com/cornjacket/pdv-terminal/e2e/client"
	"github.com/cornjacket/pdv-terminal/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:          "sync-drain",
		Description:   "Finalize sales in both modes and verify the worker syncs them upstream",
		NeedsUpstream: true,
		Run:           runSyncDrainTest,
	})
}

func runSyncDrainTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{TerminalURL: cfg.TerminalURL}

	// 1. Finalize one normal and one contingency sale
	saleIDs := make(map[string]int64)
	for _, offline := range []bool{false, true} {
		_, resp, err := client.FinalizeSale(ctx, c, &client.FinalizeRequest{
			Total:         "15.00",
			PaymentMethod: "dinheiro",
			Offline:       offline,
			Items: []client.SaleItem{
				{Description: client.UniqueDescription("e2e-sync"), Quantity: "3", Price: "5.00"},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to finalize sale (offline=%v): %w", offline, err)
		}
		if !resp.Success {
			return fmt.Errorf("finalize failed (offline=%v): %s", offline, resp.Error)
		}

		mode := "NORMAL"
		if offline {
			mode = "CONTINGENCY"
		}
		saleIDs[mode] = resp.SaleID
	}

	// 2. Both reach SYNCED with a protocol, keeping their emission mode
	for mode, saleID := range saleIDs {
		entry, err := client.WaitForSynced(ctx, c, saleID, cfg.SyncTimeout)
		if err != nil {
			return fmt.Errorf("%s sale did not sync: %w", mode, err)
		}
		if entry.Protocol == "" {
			return fmt.Errorf("%s sale synced without a protocol", mode)
		}
		if entry.Mode != mode {
			return fmt.Errorf("expected mode %s, got %s", mode, entry.Mode)
		}
	}

	if saleIDs["NORMAL"] >= saleIDs["CONTINGENCY"] {
		return fmt.Errorf("expected increasing sale ids, got %v", saleIDs)
	}

	return nil
}
