// Package units converts between human-entered token amounts ("5", "0.25")
// and the base-unit integers the escrow core operates in. The conversion
// happens only at the HTTP boundary; everything below it is *big.Int base
// units.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid token amount")

// Parse converts a decimal string into base units for a token with the given
// number of decimals. Exact arithmetic: no floats, and digits beyond the
// token's precision are rejected rather than truncated.
func Parse(human string, decimals int) (*big.Int, error) {
	human = strings.TrimSpace(human)
	if human == "" || decimals < 0 || strings.HasPrefix(human, "-") {
		return nil, ErrInvalidAmount
	}

	whole, frac := human, ""
	if i := strings.IndexByte(human, '.'); i >= 0 {
		whole, frac = human[:i], human[i+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, ErrInvalidAmount
		}
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return out, nil
}

// Format renders base units as a human decimal string with trailing zeros
// trimmed ("5", not "5.000000000000000000").
func Format(amount *big.Int, decimals int) string {
	if amount == nil || decimals < 0 {
		return "0"
	}
	s := amount.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if decimals == 0 {
		return sign(neg) + s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], s[len(s)-decimals:]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return sign(neg) + whole
	}
	return sign(neg) + whole + "." + frac
}

func sign(neg bool) string {
	if neg {
		return "-"
	}
	return ""
}
