package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	TerminalURL string
}

// SaleItem is one cart line of a finalize request.
type SaleItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
}

// FinalizeRequest represents a finalize-sale call from the checkout UI.
type FinalizeRequest struct {
	Total         string     `json:"total"`
	Items         []SaleItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	Offline       bool       `json:"offline"`
}

// FinalizeResponse represents the terminal's answer to a finalize call.
type FinalizeResponse struct {
	Success  bool   `json:"success"`
	SaleID   int64  `json:"sale_id"`
	Error    string `json:"error"`
	Degraded bool   `json:"degraded"`
}

// SyncStatus represents the sync queue entry of a sale.
type SyncStatus struct {
	SaleID    int64  `json:"sale_id"`
	EntryID   int64  `json:"entry_id"`
	MessageID string `json:"message_id"`
	AccessKey string `json:"access_key"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
	Protocol  string `json:"protocol"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UniqueDescription generates an item description for test isolation.
func UniqueDescription(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// FinalizeSale posts a sale to the terminal. The response is returned
// for any status the handler answers with, so tests can assert on failures.
func FinalizeSale(ctx context.Context, cfg *Config, req *FinalizeRequest) (int, *FinalizeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TerminalURL+"/api/v1/sales", bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var finalizeResp FinalizeResponse
	if err := json.Unmarshal(respBody, &finalizeResp); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return resp.StatusCode, &finalizeResp, nil
}

// GetSyncStatus retrieves the sync queue entry of a sale.
func GetSyncStatus(ctx context.Context, cfg *Config, saleID int64) (*SyncStatus, error) {
	url := fmt.Sprintf("%s/api/v1/sales/%d/sync", cfg.TerminalURL, saleID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // Not found is not an error
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errResp.Error)
	}

	var status SyncStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &status, nil
}

// Nudge asks the terminal's sync worker to run a tick now.
func Nudge(ctx context.Context, cfg *Config) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TerminalURL+"/api/v1/sync/nudge", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("nudge failed with status %d", resp.StatusCode)
	}
	return nil
}

// WaitForSynced nudges the worker and polls until the sale's entry is
// SYNCED or timeout. An entry that ends FAILED_PERMANENT is an error.
func WaitForSynced(ctx context.Context, cfg *Config, saleID int64, timeout time.Duration) (*SyncStatus, error) {
	deadline := time.Now().Add(timeout)

	if err := Nudge(ctx, cfg); err != nil {
		return nil, err
	}

	var last *SyncStatus
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		status, err := GetSyncStatus(ctx, cfg, saleID)
		if err != nil {
			return nil, err
		}
		if status != nil {
			last = status
			switch status.Status {
			case "SYNCED":
				return status, nil
			case "FAILED_PERMANENT":
				return nil, fmt.Errorf("sale %d escalated: %s", saleID, status.LastError)
			}
		}

		time.Sleep(250 * time.Millisecond)
	}

	if last != nil {
		return nil, fmt.Errorf("timeout waiting for sale %d to sync (status %s, %d attempts, last error %q)",
			saleID, last.Status, last.Attempts, last.LastError)
	}
	return nil, fmt.Errorf("timeout waiting for sale %d to sync", saleID)
}

// CheckHealth checks the health endpoint of the terminal.
func CheckHealth(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	return nil
}
