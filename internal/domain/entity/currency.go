package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidCurrencyCode is returned when a string is not one of the supported currency codes
var ErrInvalidCurrencyCode = errors.New("invalid currency code")

// Currency is an ISO-4217 style currency code
type Currency string

const (
	AUD Currency = "AUD"
	BGN Currency = "BGN"
	BRL Currency = "BRL"
	CAD Currency = "CAD"
	CHF Currency = "CHF"
	CNY Currency = "CNY"
	CZK Currency = "CZK"
	DKK Currency = "DKK"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	HKD Currency = "HKD"
	HUF Currency = "HUF"
	IDR Currency = "IDR"
	ILS Currency = "ILS"
	INR Currency = "INR"
	ISK Currency = "ISK"
	JPY Currency = "JPY"
	KRW Currency = "KRW"
	MXN Currency = "MXN"
	MYR Currency = "MYR"
	NOK Currency = "NOK"
	NZD Currency = "NZD"
	PHP Currency = "PHP"
	PLN Currency = "PLN"
	RON Currency = "RON"
	SEK Currency = "SEK"
	SGD Currency = "SGD"
	THB Currency = "THB"
	TRY Currency = "TRY"
	USD Currency = "USD"
	ZAR Currency = "ZAR"
)

var supportedCurrencies = map[Currency]struct{}{
	AUD: {}, BGN: {}, BRL: {}, CAD: {}, CHF: {}, CNY: {}, CZK: {}, DKK: {},
	EUR: {}, GBP: {}, HKD: {}, HUF: {}, IDR: {}, ILS: {}, INR: {}, ISK: {},
	JPY: {}, KRW: {}, MXN: {}, MYR: {}, NOK: {}, NZD: {}, PHP: {}, PLN: {},
	RON: {}, SEK: {}, SGD: {}, THB: {}, TRY: {}, USD: {}, ZAR: {},
}

// ParseCurrency converts a code to a Currency, ignoring case and surrounding whitespace
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, code)
	}
	return c, nil
}

// IsValid reports whether c is a supported currency
func (c Currency) IsValid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

func (c Currency) String() string {
	return string(c)
}

// UnmarshalText validates the code so that JSON payloads with unknown
// currencies (as values or map keys) fail to decode
func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SupportedCurrencies returns all supported currencies in alphabetical order
func SupportedCurrencies() []Currency {
	out := make([]Currency, 0, len(supportedCurrencies))
	for c := range supportedCurrencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
