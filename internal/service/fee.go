package service

import (
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Route tells the fee policy where money is going.
type Route int

const (
	RouteLocal Route = iota
	RouteExternalAccount
	RouteExternalPhone
)

// FeePolicy charges nothing inside the bank and a percentage of the principal
// for cross-bank transfers.
type FeePolicy struct {
	ExternalAccount decimal.Decimal
	ExternalPhone   decimal.Decimal
}

// Fee returns the fee for amount on route, rounded half-up to minor units.
func (f FeePolicy) Fee(route Route, amount domain.Amount) domain.Amount {
	switch route {
	case RouteExternalAccount:
		return amount.MulRate(f.ExternalAccount)
	case RouteExternalPhone:
		return amount.MulRate(f.ExternalPhone)
	}
	return 0
}
