package service

import (
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// RateTable holds fixed conversion rates from each currency to the reference
// currency. It is immutable and safe to share.
type RateTable struct {
	toReference domain.PerCurrency[decimal.Decimal]
}

func NewRateTable(toReference domain.PerCurrency[decimal.Decimal]) RateTable {
	return RateTable{toReference: toReference}
}

// ToReference returns how many reference units one unit of c is worth.
func (r RateTable) ToReference(c domain.Currency) (decimal.Decimal, error) {
	rate, ok := r.toReference.Get(c)
	if !ok || !rate.IsPositive() {
		return decimal.Zero, domain.ErrCurrencyNotSupported
	}
	return rate, nil
}

// Convert computes amount * rate(from) / rate(to) at full precision and
// rounds half-up to minor units once, at the end.
func (r RateTable) Convert(amount domain.Amount, from, to domain.Currency) (domain.Amount, error) {
	fromRate, err := r.ToReference(from)
	if err != nil {
		return 0, err
	}
	toRate, err := r.ToReference(to)
	if err != nil {
		return 0, err
	}
	if from == to {
		return amount, nil
	}
	return domain.AmountFromDecimal(amount.Decimal().Mul(fromRate).Div(toRate)), nil
}

// CurrencyRate is one row of the published rate table.
type CurrencyRate struct {
	Currency    domain.Currency
	ToReference decimal.Decimal
}

// Rates lists every currency's rate in display order.
func (r RateTable) Rates() []CurrencyRate {
	out := make([]CurrencyRate, 0, len(domain.Currencies))
	for _, c := range domain.Currencies {
		rate, _ := r.toReference.Get(c)
		out = append(out, CurrencyRate{Currency: c, ToReference: rate})
	}
	return out
}
