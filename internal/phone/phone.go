// Package phone canonicalizes user-entered phone numbers into the
// "+<country code><subscriber digits>" form used as the lookup and delivery
// key for SMS challenges.
package phone

import (
	"fmt"
	"strings"

	"github.com/Satyam1603/GoTogether/internal/common"
)

// DefaultCountryCode is prefixed to bare 10-digit numbers.
const DefaultCountryCode = "1"

const (
	minDigits = 10
	maxDigits = 15
	// Explicitly international input may carry a short national number.
	minIntlDigits = 8
)

// Normalizer converts phone numbers to canonical form. The zero value uses
// DefaultCountryCode.
type Normalizer struct {
	CountryCode string
}

// Normalize canonicalizes raw using DefaultCountryCode.
func Normalize(raw string) (string, error) {
	return Normalizer{}.Normalize(raw)
}

// Normalize strips every non-digit and then:
//   - input that started with '+' is re-emitted as '+' and its digits;
//   - 10 digits are taken as domestic and get the country code;
//   - 11 to 15 digits already carry a country code and only get '+'.
//
// Anything else fails with common.ErrInvalidPhone.
func (n Normalizer) Normalize(raw string) (string, error) {
	cc := n.CountryCode
	if cc == "" {
		cc = DefaultCountryCode
	}

	trimmed := strings.TrimSpace(raw)
	digits := onlyDigits(trimmed)

	if strings.HasPrefix(trimmed, "+") {
		if len(digits) < minIntlDigits || len(digits) > maxDigits {
			return "", fmt.Errorf("%w: %q", common.ErrInvalidPhone, raw)
		}
		return "+" + digits, nil
	}

	switch {
	case len(digits) == minDigits:
		return "+" + cc + digits, nil
	case len(digits) > minDigits && len(digits) <= maxDigits:
		return "+" + digits, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrInvalidPhone, raw)
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
