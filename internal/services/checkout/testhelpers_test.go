package checkout

import (
	"context"
	"io"
	"log/slog"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

// mockSaleTx implements SaleTx for testing.
type mockSaleTx struct {
	InsertSaleFn   func(ctx context.Context, s *sale.Sale) (int64, error)
	InsertItemsFn  func(ctx context.Context, saleID int64, items []sale.LineItem) error
	AppendOutboxFn func(ctx context.Context, entry *outbox.Entry) (int64, error)
}

func (m *mockSaleTx) InsertSale(ctx context.Context, s *sale.Sale) (int64, error) {
	return m.InsertSaleFn(ctx, s)
}

func (m *mockSaleTx) InsertItems(ctx context.Context, saleID int64, items []sale.LineItem) error {
	return m.InsertItemsFn(ctx, saleID, items)
}

func (m *mockSaleTx) AppendOutbox(ctx context.Context, entry *outbox.Entry) (int64, error) {
	return m.AppendOutboxFn(ctx, entry)
}

// mockRepository implements Repository for testing. WithinTx hands Tx to fn
// unless WithinTxFn is set.
type mockRepository struct {
	Tx            *mockSaleTx
	WithinTxFn    func(ctx context.Context, fn func(ctx context.Context, tx SaleTx) error) error
	EntryBySaleFn func(ctx context.Context, saleID int64) (*outbox.Entry, error)
}

func (m *mockRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx SaleTx) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return fn(ctx, m.Tx)
}

func (m *mockRepository) EntryBySale(ctx context.Context, saleID int64) (*outbox.Entry, error) {
	return m.EntryBySaleFn(ctx, saleID)
}

// mockBuilder implements DocumentBuilder for testing.
type mockBuilder struct {
	BuildFn func(facts fiscal.Facts, mode fiscal.Mode) (*fiscal.Document, error)
	SignFn  func(doc *fiscal.Document) (*fiscal.Signed, error)
}

func (m *mockBuilder) Build(facts fiscal.Facts, mode fiscal.Mode) (*fiscal.Document, error) {
	return m.BuildFn(facts, mode)
}

func (m *mockBuilder) Sign(doc *fiscal.Document) (*fiscal.Signed, error) {
	return m.SignFn(doc)
}

// mockNudger counts nudges.
type mockNudger struct {
	count int
}

func (m *mockNudger) Nudge() {
	m.count++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// happyTx accepts every write and assigns fixed ids.
func happyTx() *mockSaleTx {
	return &mockSaleTx{
		InsertSaleFn: func(ctx context.Context, s *sale.Sale) (int64, error) {
			return 42, nil
		},
		InsertItemsFn: func(ctx context.Context, saleID int64, items []sale.LineItem) error {
			return nil
		},
		AppendOutboxFn: func(ctx context.Context, entry *outbox.Entry) (int64, error) {
			return 1, nil
		},
	}
}

// realBuilder returns a builder with a test issuer and HMAC signer.
func realBuilder() *fiscal.Builder {
	signer, err := fiscal.NewHMACSigner([]byte("test-key"), "test-cert")
	if err != nil {
		panic(err)
	}
	return fiscal.NewBuilder(fiscal.Issuer{
		CNPJ:   "12345678000195",
		Name:   "Loja Teste",
		UF:     "35",
		Series: 1,
	}, signer)
}
