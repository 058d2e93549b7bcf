package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PriceLocale describes how a marketplace formats numbers.
type PriceLocale int

const (
	// DotDecimal: 1,299.99
	DotDecimal PriceLocale = iota
	// CommaDecimal: 1.299,99
	CommaDecimal
)

var numberPattern = regexp.MustCompile(`\d[\d.,]*`)

// currencySymbols maps marketplace price prefixes to ISO-4217 codes.
// Longer symbols are checked first so "MX$" never matches as "$".
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"U$S", "USD"},
	{"MX$", "MXN"},
	{"R$", "BRL"},
	{"$", ""},
	{"€", "EUR"},
	{"£", "GBP"},
}

// ParsePrice extracts a numeric amount from raw marketplace price text,
// honoring the source's thousands/decimal separator convention.
func ParsePrice(text string, locale PriceLocale) (float64, error) {
	raw := numberPattern.FindString(text)
	if raw == "" {
		return 0, fmt.Errorf("no numeric price in %q", text)
	}

	switch locale {
	case CommaDecimal:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	default:
		raw = strings.ReplaceAll(raw, ",", "")
	}

	val, err := strconv.ParseFloat(strings.Trim(raw, "."), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q: %w", text, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("non-positive price %q", text)
	}

	return val, nil
}

// CurrencyFromText maps a price string's currency symbol to an ISO
// code. A bare "$" is ambiguous across marketplaces, so it resolves to
// the adapter's fallback currency.
func CurrencyFromText(text, fallback string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.symbol) {
			if cs.code == "" {
				return fallback
			}
			return cs.code
		}
	}
	return fallback
}
