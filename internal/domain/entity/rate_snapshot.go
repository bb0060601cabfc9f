package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by upstream payloads and storage keys
const DateLayout = "2006-01-02"

// RateSnapshot is the set of rates published by a provider for one base currency on one day.
// A snapshot is never mutated after creation.
type RateSnapshot struct {
	ID           string                       `json:"id"`
	BaseCurrency Currency                     `json:"base_currency"`
	Date         time.Time                    `json:"date"`
	Amount       decimal.Decimal              `json:"amount"`
	Rates        map[Currency]decimal.Decimal `json:"rates"`
	Provider     ProviderID                   `json:"provider"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// NewRateSnapshot builds a snapshot, truncating the date to a calendar day
// and dropping any entry for the base currency itself
func NewRateSnapshot(base Currency, date time.Time, amount decimal.Decimal, rates map[Currency]decimal.Decimal, provider ProviderID) *RateSnapshot {
	cleaned := make(map[Currency]decimal.Decimal, len(rates))
	for c, v := range rates {
		if c == base {
			continue
		}
		cleaned[c] = v
	}

	return &RateSnapshot{
		BaseCurrency: base,
		Date:         DateOf(date),
		Amount:       amount,
		Rates:        cleaned,
		Provider:     provider,
	}
}

// Rate returns the rate for c relative to the base currency
func (s *RateSnapshot) Rate(c Currency) (decimal.Decimal, bool) {
	v, ok := s.Rates[c]
	return v, ok
}

// HasCurrency reports whether c is the base or one of the quoted currencies
func (s *RateSnapshot) HasCurrency(c Currency) bool {
	if s.BaseCurrency == c {
		return true
	}
	_, ok := s.Rates[c]
	return ok
}

// HasRateValue reports whether any quoted rate equals v numerically
func (s *RateSnapshot) HasRateValue(v decimal.Decimal) bool {
	for _, r := range s.Rates {
		if r.Equal(v) {
			return true
		}
	}
	return false
}

// DateKey returns the snapshot's calendar date as YYYY-MM-DD
func (s *RateSnapshot) DateKey() string {
	return s.Date.Format(DateLayout)
}

// DateOf strips the time-of-day, keeping the calendar date of t in its own location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
