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
		Name:        "invalid-sale",
		Description: "Reject malformed sales without committing anything",
		Run:         runInvalidSaleTest,
	})
}

func runInvalidSaleTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{TerminalURL: cfg.TerminalURL}

	cases := []struct {
		name string
		req  *client.FinalizeRequest
	}{
		{
			name: "no items",
			req:  &client.FinalizeRequest{Total: "10.00", PaymentMethod: "pix"},
		},
		{
			name: "zero total",
			req: &client.FinalizeRequest{
				Total:         "0",
				PaymentMethod: "pix",
				Items:         []client.SaleItem{{Description: "A", Quantity: "1", Price: "1.00"}},
			},
		},
		{
			name: "unknown payment method",
			req: &client.FinalizeRequest{
				Total:         "10.00",
				PaymentMethod: "cheque",
				Items:         []client.SaleItem{{Description: "A", Quantity: "1", Price: "10.00"}},
			},
		},
	}

	for _, tc := range cases {
		status, resp, err := client.FinalizeSale(ctx, c, tc.req)
		if err != nil {
			return fmt.Errorf("%s: %w", tc.name, err)
		}
		if status != http.StatusBadRequest {
			return fmt.Errorf("%s: expected status 400, got %d", tc.name, status)
		}
		if resp.Success || resp.SaleID != 0 {
			return fmt.Errorf("%s: expected no sale, got %+v", tc.name, resp)
		}
		if resp.Error == "" {
			return fmt.Errorf("%s: expected an error message", tc.name)
		}
	}

	return nil
}
