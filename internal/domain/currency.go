package domain

import "strings"

// Currency is one of the fixed set of currencies the bank holds accounts in.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyCNY Currency = "CNY"
)

// ReferenceCurrency is the currency every exchange rate is expressed against.
const ReferenceCurrency = CurrencyRUB

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{CurrencyRUB, CurrencyUSD, CurrencyEUR, CurrencyCNY}

// ParseCurrency accepts a case-insensitive ISO code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrCurrencyNotSupported
	}
	return c, nil
}

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyRUB, CurrencyUSD, CurrencyEUR, CurrencyCNY:
		return true
	}
	return false
}

func (c Currency) IsReference() bool {
	return c == ReferenceCurrency
}

// AccountPrefix returns the 4-digit account number prefix for the currency.
func (c Currency) AccountPrefix() string {
	switch c {
	case CurrencyRUB:
		return "2202"
	case CurrencyUSD:
		return "3202"
	case CurrencyEUR:
		return "4202"
	case CurrencyCNY:
		return "5202"
	}
	return ""
}

// PerCurrency holds exactly one value per supported currency. A new currency
// needs a new field, so a missing limit or rate fails to compile instead of
// silently falling through a map lookup.
type PerCurrency[T any] struct {
	RUB T
	USD T
	EUR T
	CNY T
}

// Get returns the value for c; ok is false only for an unsupported currency.
func (p PerCurrency[T]) Get(c Currency) (v T, ok bool) {
	switch c {
	case CurrencyRUB:
		return p.RUB, true
	case CurrencyUSD:
		return p.USD, true
	case CurrencyEUR:
		return p.EUR, true
	case CurrencyCNY:
		return p.CNY, true
	}
	return v, false
}
