package fiscal

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// Signer stands in for the certificate holder. It signs a digest and
// names the certificate it used.
type Signer interface {
	Sign(digest []byte) ([]byte, error)
	CertificateID() string
}

// HMACSigner signs digests with a shared terminal key.
type HMACSigner struct {
	key           []byte
	certificateID string
}

// NewHMACSigner creates a signer for the given key.
func NewHMACSigner(key []byte, certificateID string) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is empty")
	}
	return &HMACSigner{key: key, certificateID: certificateID}, nil
}

// Sign returns HMAC-SHA256(key, digest).
func (s *HMACSigner) Sign(digest []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(digest)
	return mac.Sum(nil), nil
}

// CertificateID returns the configured certificate identifier.
func (s *HMACSigner) CertificateID() string {
	return s.certificateID
}

var _ Signer = (*HMACSigner)(nil)
