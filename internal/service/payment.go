package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

type MobilePayment struct {
	Actor     domain.Actor
	AccountID int64
	Operator  string
	Phone     string
	Amount    domain.Amount
	OTP       string
}

type VendorPayment struct {
	Actor         domain.Actor
	AccountID     int64
	Provider      string
	AccountNumber string
	Amount        domain.Amount
	OTP           string
}

// PayMobile tops up a phone with a mobile operator from a RUB account.
func (s *TransferService) PayMobile(ctx context.Context, cmd MobilePayment) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return domain.Transaction{}, err
	}
	if err := directory.ValidateMobileOperator(cmd.Operator); err != nil {
		return domain.Transaction{}, err
	}
	phone, err := directory.NormalizePhone(cmd.Phone)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !directory.MobileRange.Contains(cmd.Amount) {
		return domain.Transaction{}, domain.ErrPaymentAmountOutOfRange
	}
	return s.pay(ctx, "mobile_payment", cmd.Actor, cmd.AccountID, cmd.Amount, domain.SubkindMobilePayment,
		fmt.Sprintf("mobile:%s:%s", cmd.Operator, phone))
}

// PayVendor pays a utility, education or charity provider from a RUB account.
func (s *TransferService) PayVendor(ctx context.Context, cmd VendorPayment) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return domain.Transaction{}, err
	}
	if err := directory.ValidateVendorAccount(cmd.Provider, cmd.AccountNumber); err != nil {
		return domain.Transaction{}, err
	}
	if !directory.VendorRange.Contains(cmd.Amount) {
		return domain.Transaction{}, domain.ErrPaymentAmountOutOfRange
	}
	return s.pay(ctx, "vendor_payment", cmd.Actor, cmd.AccountID, cmd.Amount, domain.SubkindVendorPayment,
		fmt.Sprintf("vendor:%s:%s", cmd.Provider, cmd.AccountNumber))
}

// pay debits one account with no counterparty row. Payments do not consume
// the daily transfer limit.
func (s *TransferService) pay(ctx context.Context, operation string, actor domain.Actor, accountID int64, amount domain.Amount, subkind domain.Subkind, description string) (domain.Transaction, error) {
	return s.execute(ctx, operation, func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return domain.Transaction{}, err
		}
		acc, err := ownedTarget(locked, accountID, actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		if acc.Currency != domain.CurrencyRUB {
			return domain.Transaction{}, domain.ErrPaymentRequiresRUB
		}
		if acc.Balance < amount {
			return domain.Transaction{}, domain.ErrInsufficientFunds
		}
		return tx.ApplyAndRecord(ctx, []ledger.BalanceDelta{{AccountID: acc.ID, Delta: -amount}}, ledger.TransactionDraft{
			FromAccountID: ptr(acc.ID),
			Subkind:       subkind,
			Amount:        amount,
			Currency:      acc.Currency,
			InitiatedBy:   actor.UserID,
			Description:   description,
			CreatedAt:     now,
		})
	})
}
