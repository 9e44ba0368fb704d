package outbox

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
)

func TestNewEntry(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	signed := &fiscal.Signed{
		AccessKey: "35260312345678000195650010000000421530218417",
		Number:    42,
		Mode:      fiscal.ModeContingency,
		Payload:   []byte("<NFe/>"),
	}

	entry, err := NewEntry(42, signed, createdAt)
	require.NoError(t, err)

	assert.Zero(t, entry.ID)
	assert.Equal(t, int64(42), entry.SaleID)
	assert.NotEqual(t, uuid.Nil, entry.MessageID)
	assert.Equal(t, byte(7), entry.MessageID.Version())
	assert.Equal(t, signed.AccessKey, entry.AccessKey)
	assert.Equal(t, fiscal.ModeContingency, entry.Mode)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Zero(t, entry.Attempts)
	assert.Nil(t, entry.ResolvedAt)
	assert.Equal(t, createdAt, entry.CreatedAt)
}

func TestNewEntry_DistinctMessageIDs(t *testing.T) {
	signed := &fiscal.Signed{Payload: []byte("<NFe/>")}

	a, err := NewEntry(1, signed, time.Now())
	require.NoError(t, err)
	b, err := NewEntry(2, signed, time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, a.MessageID, b.MessageID)
}

func TestNewEntry_RequiresPayload(t *testing.T) {
	_, err := NewEntry(1, nil, time.Now())
	assert.Error(t, err)

	_, err = NewEntry(1, &fiscal.Signed{}, time.Now())
	assert.Error(t, err)
}
