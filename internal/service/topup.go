package service

import (
	"context"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

type TopUp struct {
	Actor     domain.Actor
	AccountID int64
	Amount    domain.Amount
	OTP       string
}

type Credit struct {
	Actor     domain.Actor
	AccountID int64
	Amount    domain.Amount
	Reason    domain.TopUpReason
}

// TopUp credits the caller's own account from outside the ledger. It needs a
// one-time code and is not subject to the daily limit.
func (s *TransferService) TopUp(ctx context.Context, cmd TopUp) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return domain.Transaction{}, err
	}
	return s.credit(ctx, cmd.Actor, cmd.AccountID, cmd.Amount, domain.TopUpSelf)
}

// Credit is the helper and payroll path: no one-time code, and who may credit
// which account is decided by domain.Actor.CanCredit.
func (s *TransferService) Credit(ctx context.Context, cmd Credit) (domain.Transaction, error) {
	if err := cmd.Actor.CheckActive(); err != nil {
		return domain.Transaction{}, err
	}
	if cmd.Reason == domain.TopUpSalary && !cmd.Actor.IsAdmin() {
		return domain.Transaction{}, domain.ErrSalaryCreditAdminOnly
	}
	return s.credit(ctx, cmd.Actor, cmd.AccountID, cmd.Amount, cmd.Reason)
}

func (s *TransferService) credit(ctx context.Context, actor domain.Actor, accountID int64, amount domain.Amount, reason domain.TopUpReason) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, domain.ErrAmountNotPositive
	}
	if amount > domain.MaxAmount {
		return domain.Transaction{}, domain.ErrAmountTooLarge
	}
	subkind := reason.Subkind()

	return s.execute(ctx, string(subkind), func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return domain.Transaction{}, err
		}
		acc, ok := locked[accountID]
		if !ok {
			return domain.Transaction{}, domain.ErrAccountNotFound
		}
		if err := actor.CanCredit(acc, reason); err != nil {
			return domain.Transaction{}, err
		}
		if !acc.Active {
			return domain.Transaction{}, domain.ErrAccountInactive
		}
		// ApplyAndRecord refuses a balance above domain.MaxAmount.
		return tx.ApplyAndRecord(ctx, []ledger.BalanceDelta{{AccountID: acc.ID, Delta: amount}}, ledger.TransactionDraft{
			ToAccountID:    ptr(acc.ID),
			Subkind:        subkind,
			Amount:         amount,
			Currency:       acc.Currency,
			Credited:       amount,
			CreditCurrency: acc.Currency,
			InitiatedBy:    actor.UserID,
			Description:    topUpDescription(reason),
			CreatedAt:      now,
		})
	})
}

func topUpDescription(reason domain.TopUpReason) string {
	switch reason {
	case domain.TopUpSelf:
		return "self_topup"
	case domain.TopUpGift:
		return "helper_topup:gift"
	case domain.TopUpSalary:
		return "admin_credit"
	}
	return "helper_topup"
}
