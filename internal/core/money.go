package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a loosely formatted amount ("R$ 1.234,56", "$1,000.00",
// "1000") into a decimal. Currency symbols and spaces are dropped. When both
// separators appear the last one is the decimal point. Without a dot, a single
// comma followed by one or two digits is the decimal point; any other comma
// groups thousands.
//
// Examples:
//
//	ParseAmount("1000.00")     -> 1000.00
//	ParseAmount("R$ 1.234,56") -> 1234.56
//	ParseAmount("$1,000.50")   -> 1000.50
//	ParseAmount("1,000")       -> 1000
//	ParseAmount("12,5")        -> 12.5
//	ParseAmount("abc")         -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && strings.Count(s, ",") == 1 && decimalTail(s[lastComma+1:]):
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" || strings.Trim(cleaned, "+-.") == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// decimalTail reports whether the text after a comma reads as cents: one or
// two digits, optionally followed by non-digits such as a currency suffix.
func decimalTail(s string) bool {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n >= 1 && n <= 2
}

// FormatAmount renders a decimal with two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
