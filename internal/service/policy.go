package service

import (
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy is the set of money rules the engine enforces.
type Policy struct {
	MinTransfer        domain.Amount
	MaxSingleTransfer  domain.Amount
	DailyLimits        domain.PerCurrency[domain.Amount]
	RatesToReference   domain.PerCurrency[decimal.Decimal]
	ExternalAccountFee decimal.Decimal
	ExternalPhoneFee   decimal.Decimal
	MaxRUBAccounts     int
	MaxForeignAccounts int
	RequireOTPInternal bool
	LimitLocation      *time.Location
}

// DefaultPolicy returns the bank's standard rules.
func DefaultPolicy() Policy {
	return Policy{
		MinTransfer:       10_00,
		MaxSingleTransfer: 300_000_00,
		DailyLimits: domain.PerCurrency[domain.Amount]{
			RUB: 1_000_000_00,
			USD: 10_000_00,
			EUR: 10_000_00,
			CNY: 75_000_00,
		},
		RatesToReference: domain.PerCurrency[decimal.Decimal]{
			RUB: decimal.NewFromInt(1),
			USD: decimal.NewFromInt(95),
			EUR: decimal.NewFromInt(105),
			CNY: decimal.RequireFromString("13.5"),
		},
		ExternalAccountFee: decimal.RequireFromString("0.05"),
		ExternalPhoneFee:   decimal.RequireFromString("0.02"),
		MaxRUBAccounts:     3,
		MaxForeignAccounts: 3,
		LimitLocation:      time.UTC,
	}
}

func (p Policy) location() *time.Location {
	if p.LimitLocation == nil {
		return time.UTC
	}
	return p.LimitLocation
}

// checkTransferAmount applies the single-operation bounds shared by every
// transfer and exchange.
func (p Policy) checkTransferAmount(amount domain.Amount) error {
	switch {
	case amount <= 0:
		return domain.ErrAmountNotPositive
	case amount < p.MinTransfer:
		return domain.ErrAmountTooSmall
	case amount > p.MaxSingleTransfer:
		return domain.ErrAmountExceedsSingle
	}
	return nil
}
