package csvimport

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	errEmptyAmount   = errors.New("empty amount")
	errInvalidAmount = errors.New("invalid amount")

	plainNumber = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
	isoPrefix   = regexp.MustCompile(`^[A-Z]{3}\s*`)
	isoSuffix   = regexp.MustCompile(`\s*[A-Z]{3}$`)
)

// ParseAmount parses a raw amount cell into a signed decimal. Currency symbols,
// a leading or trailing ISO currency code, grouping commas and any kind of
// space are removed first. Any other letter makes the cell invalid.
// Accounting parentheses, a trailing minus and the Unicode minus sign all
// mark a negative value.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}
	s = isoPrefix.ReplaceAllString(s, "")
	s = isoSuffix.ReplaceAllString(s, "")

	negative := false
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(':
			negative = true
		case r == ')':
		case r == '\u2212':
			b.WriteRune('-')
		case r == ',' || r == '\'':
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
		case unicode.IsLetter(r):
			return decimal.Zero, errInvalidAmount
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	if s == "" {
		return decimal.Zero, errEmptyAmount
	}
	if !plainNumber.MatchString(s) {
		return decimal.Zero, errInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
