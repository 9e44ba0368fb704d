// Package sale defines the sale facts produced by the checkout and the
// validation applied before anything is persisted.
package sale

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDraft is wrapped by every validation failure.
var ErrInvalidDraft = errors.New("invalid sale draft")

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "dinheiro"
	PaymentCredit PaymentMethod = "credito"
	PaymentDebit  PaymentMethod = "debito"
	PaymentPix    PaymentMethod = "pix"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentPix:
		return true
	}
	return false
}

// Status of a persisted sale. Only completed sales are modelled.
type Status string

const StatusCompleted Status = "COMPLETED"

// Taxes holds the per-component tax amounts. Components may be zero.
type Taxes struct {
	ICMS   decimal.Decimal
	PIS    decimal.Decimal
	COFINS decimal.Decimal
}

// Add returns the component-wise sum.
func (t Taxes) Add(o Taxes) Taxes {
	return Taxes{
		ICMS:   t.ICMS.Add(o.ICMS),
		PIS:    t.PIS.Add(o.PIS),
		COFINS: t.COFINS.Add(o.COFINS),
	}
}

func (t Taxes) negative() bool {
	return t.ICMS.IsNegative() || t.PIS.IsNegative() || t.COFINS.IsNegative()
}

// DraftItem is one line as captured by the checkout.
type DraftItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Taxes       Taxes
}

// Draft is a finalized cart that has not been persisted yet.
type Draft struct {
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Items         []DraftItem
	// Offline is the checkout's hint that the authority was unreachable.
	Offline bool
}

// Validate checks the draft before it reaches the store.
// The total is not required to equal the item sum; discounts and
// surcharges are applied by the checkout.
func (d Draft) Validate() error {
	if !d.Total.IsPositive() {
		return fmt.Errorf("%w: total must be positive", ErrInvalidDraft)
	}
	if !d.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidDraft, d.PaymentMethod)
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidDraft)
	}
	for i, item := range d.Items {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: item %d: description is required", ErrInvalidDraft, i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidDraft, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d: price cannot be negative", ErrInvalidDraft, i+1)
		}
		if item.Taxes.negative() {
			return fmt.Errorf("%w: item %d: taxes cannot be negative", ErrInvalidDraft, i+1)
		}
	}
	return nil
}

// LineItem is a persisted sale line.
type LineItem struct {
	ID          int64
	SaleID      int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Taxes       Taxes
}

// Sale is a completed sale. ID is zero until the store assigns it.
type Sale struct {
	ID            int64
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Taxes         Taxes
	Status        Status
	Offline       bool
	CreatedAt     time.Time
	Items         []LineItem
}

// FromDraft materializes a validated draft into a sale stamped at createdAt.
// Line totals are quantity times unit price rounded to cents and the
// sale taxes are the sum of the line taxes.
func FromDraft(d Draft, createdAt time.Time) *Sale {
	s := &Sale{
		Total:         d.Total.Round(2),
		PaymentMethod: d.PaymentMethod,
		Status:        StatusCompleted,
		Offline:       d.Offline,
		CreatedAt:     createdAt,
		Items:         make([]LineItem, 0, len(d.Items)),
	}
	for _, item := range d.Items {
		line := LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Quantity.Mul(item.UnitPrice).Round(2),
			Taxes:       item.Taxes,
		}
		s.Taxes = s.Taxes.Add(line.Taxes)
		s.Items = append(s.Items, line)
	}
	return s
}

// ItemsTotal is the sum of the line totals.
func (s *Sale) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Total)
	}
	return total
}
