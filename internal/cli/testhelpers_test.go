package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
	"github.com/cornjacket/pdv-terminal/internal/shared/infra/sqlite"
)

// closedTarget is a TCP target nothing listens on.
const closedTarget = "tcp://127.0.0.1:1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// terminalEnv points the config at a fresh SQLite file and an HTTP
// authority, and returns the database path.
func terminalEnv(t *testing.T, authorityURL, probeTarget string) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "pdv.db")
	t.Setenv("PDV_ENV", "development")
	t.Setenv("PDV_LOG_LEVEL", "error")
	t.Setenv("PDV_STORE_DRIVER", "sqlite")
	t.Setenv("PDV_SQLITE_PATH", dbPath)
	t.Setenv("PDV_TRANSPORT", "http")
	t.Setenv("PDV_AUTHORITY_URL", authorityURL)
	t.Setenv("PDV_PROBE_TARGETS", probeTarget)
	t.Setenv("PDV_PROBE_TIMEOUT", "1s")
	t.Setenv("PDV_TRANSMIT_TIMEOUT", "2s")
	return dbPath
}

// fakeAuthority authorizes every document and answers probes.
type fakeAuthority struct {
	*httptest.Server
	received atomic.Int32
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()

	a := &fakeAuthority{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		a.received.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":   "authorized",
			"protocol": "135260000000001",
		})
	}))
	t.Cleanup(a.Close)
	return a
}

// seedSale commits one sale into the store at dbPath and returns its sync entry.
func seedSale(t *testing.T, dbPath string) *outbox.Entry {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	signer, err := fiscal.NewHMACSigner([]byte("test-key"), "test-cert")
	require.NoError(t, err)
	builder := fiscal.NewBuilder(fiscal.Issuer{CNPJ: "12345678000195", Name: "Loja Teste", UF: "35", Series: 1}, signer)

	svc := checkout.NewService(store, builder, checkout.Options{}, testLogger())
	saleID, err := svc.Commit(ctx, sale.Draft{
		Total:         decimal.RequireFromString("42.50"),
		PaymentMethod: sale.PaymentPix,
		Items: []sale.DraftItem{
			{Description: "Cafe", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("42.50")},
		},
	})
	require.NoError(t, err)

	entry, err := store.EntryBySale(ctx, saleID)
	require.NoError(t, err)
	return entry
}

func readEntry(t *testing.T, dbPath string, saleID int64) *outbox.Entry {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	entry, err := store.EntryBySale(ctx, saleID)
	require.NoError(t, err)
	return entry
}
