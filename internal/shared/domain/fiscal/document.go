package fiscal

import (
	"encoding/xml"
	"fmt"
)

// Mode is the emission mode embedded in the document.
type Mode string

const (
	// ModeNormal is used when the sale was processed online.
	ModeNormal Mode = "NORMAL"
	// ModeContingency is used when the authority was unreachable at sale time.
	ModeContingency Mode = "CONTINGENCY"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeContingency
}

// Emission type codes (tpEmis).
const (
	emissionNormal      = 1
	emissionContingency = 9
)

func (m Mode) emissionType() int {
	if m == ModeContingency {
		return emissionContingency
	}
	return emissionNormal
}

func modeFromEmissionType(code int) (Mode, bool) {
	switch code {
	case emissionNormal:
		return ModeNormal, true
	case emissionContingency:
		return ModeContingency, true
	}
	return "", false
}

// Document is a reduced NFC-e: identification, issuer, lines, totals and
// payment. Signature is nil until Sign returns a signed copy.
type Document struct {
	XMLName   xml.Name   `xml:"NFe"`
	Info      Info       `xml:"infNFe"`
	Signature *Signature `xml:"Signature,omitempty"`
}

// Info is the signed part of the document.
type Info struct {
	XMLName xml.Name       `xml:"infNFe"`
	ID      string         `xml:"Id,attr"`
	Version string         `xml:"versao,attr"`
	Ide     Identification `xml:"ide"`
	Issuer  IssuerBlock    `xml:"emit"`
	Items   []Item         `xml:"det"`
	Totals  Totals         `xml:"total"`
	Payment Payment        `xml:"pag"`
}

type Identification struct {
	UF                string `xml:"cUF"`
	Code              string `xml:"cNF"`
	Model             int    `xml:"mod"`
	Series            int    `xml:"serie"`
	Number            int64  `xml:"nNF"`
	EmittedAt         string `xml:"dhEmi"`
	EmissionType      int    `xml:"tpEmis"`
	CheckDigit        int    `xml:"cDV"`
	Environment       int    `xml:"tpAmb"`
	ContingencyAt     string `xml:"dhCont,omitempty"`
	ContingencyReason string `xml:"xJust,omitempty"`
}

type IssuerBlock struct {
	CNPJ string `xml:"CNPJ"`
	Name string `xml:"xNome"`
}

type Item struct {
	Number  int     `xml:"nItem,attr"`
	Product Product `xml:"prod"`
	Tax     ItemTax `xml:"imposto"`
}

type Product struct {
	Description string `xml:"xProd"`
	Quantity    string `xml:"qCom"`
	UnitPrice   string `xml:"vUnCom"`
	Total       string `xml:"vProd"`
}

type ItemTax struct {
	ICMS   string `xml:"vICMS"`
	PIS    string `xml:"vPIS"`
	COFINS string `xml:"vCOFINS"`
}

type Totals struct {
	Products string `xml:"vProd"`
	ICMS     string `xml:"vICMS"`
	PIS      string `xml:"vPIS"`
	COFINS   string `xml:"vCOFINS"`
	Document string `xml:"vNF"`
}

type Payment struct {
	Method string `xml:"tPag"`
	Amount string `xml:"vPag"`
}

// Signature carries the digest of Info and the value produced by the Signer.
type Signature struct {
	DigestValue    string `xml:"DigestValue"`
	SignatureValue string `xml:"SignatureValue"`
	KeyInfo        string `xml:"KeyInfo"`
}

// AccessKey returns the 44-digit key embedded in the Id attribute.
func (d *Document) AccessKey() string {
	if len(d.Info.ID) != len(accessKeyPrefix)+accessKeyLength {
		return ""
	}
	return d.Info.ID[len(accessKeyPrefix):]
}

// Mode returns the emission mode recorded in the document.
func (d *Document) Mode() Mode {
	m, _ := modeFromEmissionType(d.Info.Ide.EmissionType)
	return m
}

// Payload renders the document exactly as it is stored and transmitted.
func (d *Document) Payload() ([]byte, error) {
	body, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Parse decodes a stored payload.
func Parse(payload []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}
