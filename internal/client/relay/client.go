// Package relay transmits signed fiscal documents through the store's
// message relay, which forwards them to the tax authority.
package relay

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/redpanda"
)

const contingencySuffix = "-contingency"

// Header keys set on every produced record.
const (
	HeaderMessageID = "message-id"
	HeaderAccessKey = "access-key"
	HeaderSaleID    = "sale-id"
	HeaderMode      = "mode"
	HeaderAttempt   = "attempt"
)

// Publisher publishes records to the message bus.
// This interface is satisfied by redpanda.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg redpanda.Message) (string, error)
}

// Client submits outbox entries to the relay topic.
type Client struct {
	publisher  Publisher
	topic      string
	terminalID string
	logger     *slog.Logger
}

// New creates a new relay client. Records are keyed by terminalID so one
// terminal's documents stay ordered within a partition.
func New(publisher Publisher, topic, terminalID string, logger *slog.Logger) *Client {
	return &Client{
		publisher:  publisher,
		topic:      topic,
		terminalID: terminalID,
		logger:     logger.With("client", "relay"),
	}
}

// Transmit publishes the entry's signed payload. The returned protocol is
// the record position acknowledged by the broker.
func (c *Client) Transmit(ctx context.Context, entry *outbox.Entry) (*outbox.Receipt, error) {
	topic := topicForMode(c.topic, entry.Mode)

	position, err := c.publisher.Publish(ctx, redpanda.Message{
		Topic: topic,
		Key:   []byte(c.terminalID),
		Value: entry.Payload,
		Headers: map[string]string{
			HeaderMessageID: entry.MessageID.String(),
			HeaderAccessKey: entry.AccessKey,
			HeaderSaleID:    strconv.FormatInt(entry.SaleID, 10),
			HeaderMode:      string(entry.Mode),
			HeaderAttempt:   strconv.Itoa(entry.Attempts + 1),
		},
	})
	if err != nil {
		c.logger.Error("failed to transmit document",
			"entry_id", entry.ID,
			"access_key", entry.AccessKey,
			"topic", topic,
			"error", err,
		)
		return nil, err
	}

	c.logger.Debug("document transmitted to relay",
		"entry_id", entry.ID,
		"access_key", entry.AccessKey,
		"topic", topic,
		"protocol", position,
	)

	return &outbox.Receipt{Protocol: position}, nil
}

// topicForMode routes contingency documents to their own topic so the
// relay can apply the authority's late-submission rules to them.
func topicForMode(base string, mode fiscal.Mode) string {
	if mode == fiscal.ModeContingency {
		return base + contingencySuffix
	}
	return base
}
