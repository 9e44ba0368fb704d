package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/redpanda"
)

type mockPublisher struct {
	publishFn func(ctx context.Context, msg redpanda.Message) (string, error)
}

func (m *mockPublisher) Publish(ctx context.Context, msg redpanda.Message) (string, error) {
	return m.publishFn(ctx, msg)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEntry(t *testing.T, mode fiscal.Mode) *outbox.Entry {
	t.Helper()
	entry, err := outbox.NewEntry(42, &fiscal.Signed{
		AccessKey: "35260312345678000195650010000000421530218417",
		Mode:      mode,
		Payload:   []byte("<NFe>signed</NFe>"),
	}, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	entry.ID = 7
	entry.Attempts = 2
	return entry
}

func TestTopicForMode(t *testing.T) {
	tests := []struct {
		mode fiscal.Mode
		want string
	}{
		{fiscal.ModeNormal, "fiscal-documents"},
		{fiscal.ModeContingency, "fiscal-documents-contingency"},
		{fiscal.Mode(""), "fiscal-documents"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.want, topicForMode("fiscal-documents", tt.mode))
		})
	}
}

func TestTransmit(t *testing.T) {
	var got redpanda.Message
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, msg redpanda.Message) (string, error) {
			got = msg
			return "fiscal-documents-contingency/0@12", nil
		},
	}
	client := New(pub, "fiscal-documents", "pdv-001", testLogger())
	entry := testEntry(t, fiscal.ModeContingency)

	receipt, err := client.Transmit(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, "fiscal-documents-contingency/0@12", receipt.Protocol)

	assert.Equal(t, "fiscal-documents-contingency", got.Topic)
	assert.Equal(t, []byte("pdv-001"), got.Key)
	assert.Equal(t, entry.Payload, got.Value)
	assert.Equal(t, map[string]string{
		HeaderMessageID: entry.MessageID.String(),
		HeaderAccessKey: entry.AccessKey,
		HeaderSaleID:    "42",
		HeaderMode:      "CONTINGENCY",
		HeaderAttempt:   "3",
	}, got.Headers)
}

func TestTransmit_PublishError(t *testing.T) {
	boom := errors.New("broker unavailable")
	pub := &mockPublisher{
		publishFn: func(ctx context.Context, msg redpanda.Message) (string, error) {
			return "", boom
		},
	}
	client := New(pub, "fiscal-documents", "pdv-001", testLogger())

	receipt, err := client.Transmit(context.Background(), testEntry(t, fiscal.ModeNormal))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, receipt)
}
