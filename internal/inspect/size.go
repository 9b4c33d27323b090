package inspect

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit multipliers for suffixed size tokens.
const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
)

// ParseError reports a size token that could not be converted to bytes.
type ParseError struct {
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid size token %q", e.Token)
}

// ParseSize converts a size token into a byte count.
//
// A trailing K, M or G multiplies by 1024, 1024² or 1024³; without a suffix
// the token is taken as raw bytes. Decimals are allowed ("1.5K", "3.5").
// Malformed tokens yield 0 rather than an error, so bad sizes sort as
// smallest instead of aborting aggregation.
func ParseSize(token string) float64 {
	bytes, err := ParseSizeStrict(token)
	if err != nil {
		return 0
	}

	return bytes
}

// ParseSizeStrict is ParseSize for callers that need the failure signal.
// It returns a *ParseError for empty, non-numeric or malformed tokens.
func ParseSizeStrict(token string) (float64, error) {
	numeric := token
	multiplier := 1.0

	switch {
	case strings.HasSuffix(token, "K"):
		numeric, multiplier = strings.TrimSuffix(token, "K"), kilobyte
	case strings.HasSuffix(token, "M"):
		numeric, multiplier = strings.TrimSuffix(token, "M"), megabyte
	case strings.HasSuffix(token, "G"):
		numeric, multiplier = strings.TrimSuffix(token, "G"), gigabyte
	}

	if !isNumeric(numeric) {
		return 0, &ParseError{Token: token}
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, &ParseError{Token: token}
	}

	return value * multiplier, nil
}

// isNumeric reports whether s consists solely of digits and at most one
// decimal point.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	dots := 0

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
