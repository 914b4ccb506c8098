package utils

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseMoney parses a report or rate-card amount into an exact decimal.
// Both "1234.56" and "1.234,56" are accepted: when both separators appear the
// rightmost one is the decimal point; a lone comma is a decimal comma unless
// it is followed by exactly three digits.
func ParseMoney(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, ErrInvalidAmount
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European: 1.234,56 -> 1234.56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			// American: 1,234.56 -> 1234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 != 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if isNegative {
		d = d.Neg()
	}
	return d, nil
}
