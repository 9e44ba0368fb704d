package checkout

import (
	"context"

	"github.com/cornjacket/pdv-terminal/internal/services/checkout/worker"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/fiscal"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

// SaleTx is the write surface available inside one commit.
// Every call runs in the same transaction; nothing is visible until
// the enclosing WithinTx returns nil.
type SaleTx interface {
	InsertSale(ctx context.Context, s *sale.Sale) (int64, error)
	InsertItems(ctx context.Context, saleID int64, items []sale.LineItem) error
	AppendOutbox(ctx context.Context, entry *outbox.Entry) (int64, error)
}

// SaleStore runs fn in a transaction. If fn returns an error the
// transaction is rolled back and the error is returned unchanged.
type SaleStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx SaleTx) error) error
}

// SyncStatusReader looks up the outbox entry of a sale.
type SyncStatusReader interface {
	EntryBySale(ctx context.Context, saleID int64) (*outbox.Entry, error)
}

// Store is everything the checkout service and its worker need from persistence.
// Satisfied by sqlite.Store and postgres.Store.
type Store interface {
	SaleStore
	SyncStatusReader
	worker.OutboxReader
}

// Nudger is told when a new entry was committed.
type Nudger interface {
	Nudge()
}

// Repository is what the checkout service reads and writes.
type Repository interface {
	SaleStore
	SyncStatusReader
}

// DocumentBuilder builds and signs the fiscal document of a sale.
// This interface is satisfied by fiscal.Builder.
type DocumentBuilder interface {
	Build(facts fiscal.Facts, mode fiscal.Mode) (*fiscal.Document, error)
	Sign(doc *fiscal.Document) (*fiscal.Signed, error)
}
