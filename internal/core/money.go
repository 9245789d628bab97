package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount string into a positive float64.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// zero and anything decimal cannot parse are rejected with ErrInvalidAmount.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	v := d.InexactFloat64()
	if err := ValidateAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}

// FormatLKR renders an amount the way the app displays money,
// e.g. "LKR 12,345.60". Negative values keep their sign.
func FormatLKR(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "LKR " + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
