// Package issuer holds the allow-list of receipt issuers (company tax ids)
// whose receipts may earn rewards.
package issuer

import (
	"strings"

	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/types"
)

// CodeLength is the number of digits in an issuer tax id.
const CodeLength = 14

// Offset of the issuer tax id inside a receipt access key.
const accessKeyOffset = 6

type Issuer struct {
	types.Entity
	ID     id.IssuerID `json:"id"`
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Active bool        `json:"active"`
}

// NormalizeCode strips every non-digit rune from raw.
func NormalizeCode(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FromAccessKey extracts the issuer tax id embedded in a receipt access key.
// The second return value is false when the key is too short to carry one.
func FromAccessKey(accessKey string) (string, bool) {
	end := accessKeyOffset + CodeLength
	if len(accessKey) < end {
		return "", false
	}
	return accessKey[accessKeyOffset:end], true
}
