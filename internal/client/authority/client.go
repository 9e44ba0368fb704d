// Package authority transmits signed fiscal documents straight to the
// tax authority's reception endpoint over HTTP.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
)

const (
	documentsPath = "/v1/documents"

	statusAuthorized = "authorized"
	statusRejected   = "rejected"

	maxResponseBytes = 1 << 20
)

// ErrRejected is returned when the authority answered but refused the document.
// The entry stays PENDING; rejected documents are escalated by an operator.
var ErrRejected = errors.New("document rejected by authority")

// Response is the authority's answer to a submission.
type Response struct {
	Status   string `json:"status"`
	Protocol string `json:"protocol,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Client posts documents to the authority.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new authority client. The caller bounds each call with ctx.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("client", "authority"),
	}
}

// Transmit submits the entry's payload. The message id is sent as the
// idempotency key so a resend after a lost response is recognised.
func (c *Client) Transmit(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+documentsPath, bytes.NewReader(entry.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", entry.MessageID.String())
	req.Header.Set("X-Access-Key", entry.AccessKey)
	req.Header.Set("X-Emission-Mode", string(entry.Mode))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send document: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	switch result.Status {
	case statusAuthorized:
		if result.Protocol == "" {
			return nil, errors.New("authorized response without protocol")
		}
		c.logger.Debug("document authorized",
			"entry_id", entry.ID,
			"access_key", entry.AccessKey,
			"protocol", result.Protocol,
		)
		return &outbox.Receipt{Protocol: result.Protocol}, nil
	case statusRejected:
		return nil, fmt.Errorf("%w: %s", ErrRejected, result.Reason)
	default:
		return nil, fmt.Errorf("unknown authority status %q", result.Status)
	}
}
