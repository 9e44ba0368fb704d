package fiscal

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	accessKeyPrefix = "NFe"
	accessKeyLength = 44
	documentModel   = 65
	maxNumber       = 999_999_999
)

// Domain prefixes for the hashes computed by this package.
// Format: SHA256(domain + 0x00 + data)
const (
	domainCode   = "pdv/nfce-code/v1"
	domainDigest = "pdv/nfce-digest/v1"
)

func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// numericCode derives the 8-digit cNF from the document facts, so the
// same sale always gets the same key. It never equals the low 8 digits
// of the document number.
func numericCode(cnpj string, series int, number int64, emittedAt time.Time) string {
	seed := fmt.Sprintf("%s|%03d|%09d|%s", cnpj, series, number, emittedAt.UTC().Format(time.RFC3339Nano))
	sum := hashWithDomain(domainCode, []byte(seed))
	code := binary.BigEndian.Uint64(sum[:8]) % 100_000_000
	if int64(code) == number%100_000_000 {
		code = (code + 1) % 100_000_000
	}
	return fmt.Sprintf("%08d", code)
}

// accessKeyBase is the 43-digit key without its check digit.
func accessKeyBase(uf string, emittedAt time.Time, cnpj string, series int, number int64, emissionType int, code string) string {
	return fmt.Sprintf("%s%s%s%02d%03d%09d%d%s",
		uf, emittedAt.UTC().Format("0601"), cnpj, documentModel, series, number, emissionType, code)
}

// checkDigit is the mod-11 digit with weights 2..9 applied right to left.
func checkDigit(digits string) int {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// ValidAccessKey reports whether key has 44 digits and a correct check digit.
func ValidAccessKey(key string) bool {
	if len(key) != accessKeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return checkDigit(key[:accessKeyLength-1]) == int(key[accessKeyLength-1]-'0')
}
