package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// NumberGenerator produces a candidate account number for a currency.
type NumberGenerator func(domain.Currency) string

// RandomAccountNumber is the currency prefix followed by random digits.
func RandomAccountNumber(c domain.Currency) string {
	prefix := c.AccountPrefix()
	var b strings.Builder
	b.Grow(domain.AccountNumberLength)
	b.WriteString(prefix)
	for b.Len() < domain.AccountNumberLength {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

type AccountService struct {
	store   ledger.Store
	policy  Policy
	audit   *AuditService
	numbers NumberGenerator
}

func NewAccountService(store ledger.Store, policy Policy) *AccountService {
	return &AccountService{
		store:   store,
		policy:  policy,
		audit:   NewAuditService(time.Now),
		numbers: RandomAccountNumber,
	}
}

// WithNumberGenerator replaces the account number source.
func (s *AccountService) WithNumberGenerator(gen NumberGenerator) *AccountService {
	s.numbers = gen
	return s
}

// Open creates a zero-balance account. The first active account of a
// currency becomes its primary one.
func (s *AccountService) Open(ctx context.Context, actor domain.Actor, typ domain.AccountType, currency domain.Currency) (domain.Account, error) {
	if err := actor.CheckActive(); err != nil {
		return domain.Account{}, err
	}
	if typ != domain.AccountTypeChecking && typ != domain.AccountTypeSavings {
		return domain.Account{}, domain.ErrInvalidAccountType
	}
	if !currency.IsValid() {
		return domain.Account{}, domain.ErrCurrencyNotSupported
	}

	start := time.Now()
	var created domain.Account
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		// The user lock serialises concurrent opens against the caps.
		if err := tx.LockUser(ctx, actor.UserID); err != nil {
			return err
		}
		counts, err := tx.CountActiveAccounts(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if err := s.checkCaps(counts, currency); err != nil {
			return err
		}

		for attempt := 1; ; attempt++ {
			created, err = tx.InsertAccount(ctx, domain.Account{
				Number:   s.numbers(currency),
				UserID:   actor.UserID,
				Type:     typ,
				Currency: currency,
				Active:   true,
				Primary:  counts[currency] == 0,
			})
			if err == nil {
				break
			}
			if !errors.Is(err, domain.ErrAccountNumberTaken) || attempt == maxNumberAttempts {
				return err
			}
			zap.L().Warn("account number collision, retrying", zap.Int("attempt", attempt))
		}

		return s.audit.Write(ctx, tx, entityAccount, created.ID, actor.UserID, "account_opened", map[string]any{
			"currency": string(currency),
			"type":     string(typ),
		})
	})
	observability.ObserveLedgerOperation("open_account", resultLabel(err), time.Since(start))
	if err != nil {
		return domain.Account{}, err
	}
	return created, nil
}

func (s *AccountService) checkCaps(counts map[domain.Currency]int, currency domain.Currency) error {
	if currency.IsReference() {
		if counts[currency] >= s.policy.MaxRUBAccounts {
			return domain.ErrAccountLimitExceeded
		}
		return nil
	}
	foreign := 0
	for c, n := range counts {
		if !c.IsReference() {
			foreign += n
		}
	}
	if foreign >= s.policy.MaxForeignAccounts {
		return domain.ErrAccountLimitExceeded
	}
	return nil
}

// Close soft-deletes an account with a zero balance.
func (s *AccountService) Close(ctx context.Context, actor domain.Actor, accountID int64) error {
	if err := actor.CheckActive(); err != nil {
		return err
	}
	start := time.Now()
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acc, ok := locked[accountID]
		if !ok || !actor.Owns(acc) {
			return domain.ErrAccountNotFound
		}
		if !acc.Active {
			return domain.ErrAccountAlreadyClosed
		}
		if acc.Balance != 0 {
			return domain.ErrCloseRequiresZeroBalance
		}
		if err := tx.DeactivateAccount(ctx, acc.ID); err != nil {
			return err
		}
		return s.audit.Write(ctx, tx, entityAccount, acc.ID, actor.UserID, "account_closed", nil)
	})
	observability.ObserveLedgerOperation("close_account", resultLabel(err), time.Since(start))
	return err
}

// SetPrimary makes the account the preferred recipient for its currency.
func (s *AccountService) SetPrimary(ctx context.Context, actor domain.Actor, accountID int64) (domain.Account, error) {
	if err := actor.CheckActive(); err != nil {
		return domain.Account{}, err
	}
	var updated domain.Account
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if err := tx.LockUser(ctx, actor.UserID); err != nil {
			return err
		}
		// Flipping the flag rewrites every account of the currency, so all of
		// them are locked up front in ascending id order like any transfer.
		owned, err := tx.ListAccounts(ctx, actor.UserID, false)
		if err != nil {
			return err
		}
		var target *domain.Account
		for i := range owned {
			if owned[i].ID == accountID {
				target = &owned[i]
			}
		}
		if target == nil {
			return domain.ErrAccountNotFound
		}
		ids := make([]int64, 0, len(owned))
		for _, a := range owned {
			if a.Currency == target.Currency {
				ids = append(ids, a.ID)
			}
		}
		locked, err := tx.LockAccounts(ctx, ids...)
		if err != nil {
			return err
		}
		acc, ok := locked[accountID]
		if !ok || !actor.Owns(acc) {
			return domain.ErrAccountNotFound
		}
		if !acc.Active {
			return domain.ErrAccountInactive
		}
		if err := tx.SetPrimary(ctx, actor.UserID, acc.ID, acc.Currency); err != nil {
			return err
		}
		if err := s.audit.Write(ctx, tx, entityAccount, acc.ID, actor.UserID, "account_primary_set", map[string]any{
			"currency": string(acc.Currency),
		}); err != nil {
			return err
		}
		updated, err = tx.GetAccount(ctx, acc.ID)
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}
	return updated, nil
}

// List returns the caller's active accounts.
func (s *AccountService) List(ctx context.Context, actor domain.Actor) ([]domain.Account, error) {
	if err := actor.CheckActive(); err != nil {
		return nil, err
	}
	return s.store.Reader().ListAccounts(ctx, actor.UserID, true)
}

// Get returns one of the caller's accounts; admins may read any account.
func (s *AccountService) Get(ctx context.Context, actor domain.Actor, accountID int64) (domain.Account, error) {
	if err := actor.CheckActive(); err != nil {
		return domain.Account{}, err
	}
	acc, err := s.store.Reader().GetAccount(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !actor.Owns(acc) && !actor.IsAdmin() {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc, nil
}
