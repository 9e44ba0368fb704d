// Package fiscal builds and signs the fiscal document for a sale.
//
// Build and Sign are pure: the same facts, mode and signer always produce
// the same bytes. Neither touches the network or the store.
package fiscal

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

const (
	layoutVersion         = "4.00"
	maxDescriptionRunes   = 120
	contingencyReason     = "terminal offline: authority unreachable at emission time"
	timestampLayout       = "2006-01-02T15:04:05-07:00"
	environmentProduction = 1
	environmentTesting    = 2
)

var (
	// ErrAlreadySigned is returned when Sign receives a signed document.
	ErrAlreadySigned = errors.New("document is already signed")
	// ErrMalformedDocument is returned for incomplete facts or documents.
	ErrMalformedDocument = errors.New("malformed document")
)

// SigningError aborts a commit. Op is "build" or "sign".
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("fiscal %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Issuer identifies the establishment emitting documents.
type Issuer struct {
	CNPJ       string
	Name       string
	UF         string
	Series     int
	Production bool
}

// Facts is everything the document needs to know about a committed sale.
type Facts struct {
	Number        int64
	EmittedAt     time.Time
	Total         decimal.Decimal
	PaymentMethod sale.PaymentMethod
	Taxes         sale.Taxes
	Items         []sale.LineItem
}

// FactsFromSale takes the facts from a sale whose ID has been assigned.
// The sale ID doubles as the document number.
func FactsFromSale(s *sale.Sale) Facts {
	return Facts{
		Number:        s.ID,
		EmittedAt:     s.CreatedAt,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Taxes:         s.Taxes,
		Items:         s.Items,
	}
}

// Signed is the outcome of Sign.
type Signed struct {
	AccessKey string
	Number    int64
	Mode      Mode
	Payload   []byte
}

// Builder builds and signs documents for one issuer.
type Builder struct {
	issuer Issuer
	signer Signer
}

// NewBuilder creates a Builder.
func NewBuilder(issuer Issuer, signer Signer) *Builder {
	return &Builder{issuer: issuer, signer: signer}
}

// Build produces an unsigned document. Emission time, number and mode are
// fixed here and Sign never changes them.
func (b *Builder) Build(facts Facts, mode Mode) (*Document, error) {
	if err := validateFacts(facts, mode); err != nil {
		return nil, &SigningError{Op: "build", Err: err}
	}

	emittedAt := facts.EmittedAt.UTC()
	code := numericCode(b.issuer.CNPJ, b.issuer.Series, facts.Number, emittedAt)
	base := accessKeyBase(b.issuer.UF, emittedAt, b.issuer.CNPJ, b.issuer.Series, facts.Number, mode.emissionType(), code)
	dv := checkDigit(base)

	ide := Identification{
		UF:           b.issuer.UF,
		Code:         code,
		Model:        documentModel,
		Series:       b.issuer.Series,
		Number:       facts.Number,
		EmittedAt:    emittedAt.Format(timestampLayout),
		EmissionType: mode.emissionType(),
		CheckDigit:   dv,
		Environment:  environmentTesting,
	}
	if b.issuer.Production {
		ide.Environment = environmentProduction
	}
	if mode == ModeContingency {
		ide.ContingencyAt = ide.EmittedAt
		ide.ContingencyReason = contingencyReason
	}

	items := make([]Item, len(facts.Items))
	productsTotal := decimal.Zero
	for i, line := range facts.Items {
		items[i] = Item{
			Number: i + 1,
			Product: Product{
				Description: normalizeDescription(line.Description),
				Quantity:    line.Quantity.StringFixed(4),
				UnitPrice:   line.UnitPrice.StringFixed(2),
				Total:       line.Total.StringFixed(2),
			},
			Tax: ItemTax{
				ICMS:   line.Taxes.ICMS.StringFixed(2),
				PIS:    line.Taxes.PIS.StringFixed(2),
				COFINS: line.Taxes.COFINS.StringFixed(2),
			},
		}
		productsTotal = productsTotal.Add(line.Total)
	}

	return &Document{
		Info: Info{
			ID:      fmt.Sprintf("%s%s%d", accessKeyPrefix, base, dv),
			Version: layoutVersion,
			Ide:     ide,
			Issuer:  IssuerBlock{CNPJ: b.issuer.CNPJ, Name: normalizeDescription(b.issuer.Name)},
			Items:   items,
			Totals: Totals{
				Products: productsTotal.StringFixed(2),
				ICMS:     facts.Taxes.ICMS.StringFixed(2),
				PIS:      facts.Taxes.PIS.StringFixed(2),
				COFINS:   facts.Taxes.COFINS.StringFixed(2),
				Document: facts.Total.StringFixed(2),
			},
			Payment: Payment{
				Method: paymentCode(facts.PaymentMethod),
				Amount: facts.Total.StringFixed(2),
			},
		},
	}, nil
}

// Sign returns a signed copy of doc. The input is left untouched.
func (b *Builder) Sign(doc *Document) (*Signed, error) {
	if doc == nil {
		return nil, &SigningError{Op: "sign", Err: fmt.Errorf("%w: nil document", ErrMalformedDocument)}
	}
	if doc.Signature != nil {
		return nil, &SigningError{Op: "sign", Err: ErrAlreadySigned}
	}
	if err := validateDocument(doc); err != nil {
		return nil, &SigningError{Op: "sign", Err: err}
	}

	info, err := xml.Marshal(doc.Info)
	if err != nil {
		return nil, &SigningError{Op: "sign", Err: err}
	}
	digest := hashWithDomain(domainDigest, info)

	value, err := b.signer.Sign(digest)
	if err != nil {
		return nil, &SigningError{Op: "sign", Err: err}
	}

	signed := *doc
	signed.Signature = &Signature{
		DigestValue:    base64.StdEncoding.EncodeToString(digest),
		SignatureValue: base64.StdEncoding.EncodeToString(value),
		KeyInfo:        b.signer.CertificateID(),
	}

	payload, err := signed.Payload()
	if err != nil {
		return nil, &SigningError{Op: "sign", Err: err}
	}

	return &Signed{
		AccessKey: signed.AccessKey(),
		Number:    signed.Info.Ide.Number,
		Mode:      signed.Mode(),
		Payload:   payload,
	}, nil
}

func validateFacts(facts Facts, mode Mode) error {
	switch {
	case !mode.Valid():
		return fmt.Errorf("%w: unknown mode %q", ErrMalformedDocument, mode)
	case facts.Number <= 0 || facts.Number > maxNumber:
		return fmt.Errorf("%w: document number %d out of range", ErrMalformedDocument, facts.Number)
	case facts.EmittedAt.IsZero():
		return fmt.Errorf("%w: emission time is required", ErrMalformedDocument)
	case len(facts.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrMalformedDocument)
	}
	return nil
}

func validateDocument(doc *Document) error {
	ide := doc.Info.Ide
	switch {
	case !ValidAccessKey(doc.AccessKey()):
		return fmt.Errorf("%w: invalid access key", ErrMalformedDocument)
	case ide.Number <= 0:
		return fmt.Errorf("%w: missing document number", ErrMalformedDocument)
	case ide.EmittedAt == "":
		return fmt.Errorf("%w: missing emission time", ErrMalformedDocument)
	case len(doc.Info.Items) == 0:
		return fmt.Errorf("%w: no items", ErrMalformedDocument)
	}
	if _, ok := modeFromEmissionType(ide.EmissionType); !ok {
		return fmt.Errorf("%w: unknown emission type %d", ErrMalformedDocument, ide.EmissionType)
	}
	return nil
}

// normalizeDescription composes to NFC so equal text signs identically,
// then caps the length accepted by the authority.
func normalizeDescription(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= maxDescriptionRunes {
		return s
	}
	return string([]rune(s)[:maxDescriptionRunes])
}

func paymentCode(m sale.PaymentMethod) string {
	switch m {
	case sale.PaymentCash:
		return "01"
	case sale.PaymentCredit:
		return "03"
	case sale.PaymentDebit:
		return "04"
	case sale.PaymentPix:
		return "17"
	}
	return "99"
}
