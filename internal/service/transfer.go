package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

// TransferService is the transfer engine. Every operation validates, locks,
// applies its balance deltas and appends exactly one transaction in a single
// unit of work; a rejected operation writes nothing.
type TransferService struct {
	store  ledger.Store
	users  UserStore
	otp    OTPVerifier
	events EventSink
	policy Policy
	rates  RateTable
	fees   FeePolicy
	limits LimitTracker
	now    func() time.Time
}

func NewTransferService(store ledger.Store, users UserStore, otp OTPVerifier, events EventSink, policy Policy) *TransferService {
	if events == nil {
		events = noopSink{}
	}
	return &TransferService{
		store:  store,
		users:  users,
		otp:    otp,
		events: events,
		policy: policy,
		rates:  NewRateTable(policy.RatesToReference),
		fees:   FeePolicy{ExternalAccount: policy.ExternalAccountFee, ExternalPhone: policy.ExternalPhoneFee},
		limits: NewLimitTracker(policy.DailyLimits, policy.location()),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to stamp transactions and place them in
// a daily-limit window.
func (s *TransferService) WithClock(now func() time.Time) *TransferService {
	s.now = now
	return s
}

type InternalTransfer struct {
	Actor         domain.Actor
	FromAccountID int64
	ToAccountID   int64
	Amount        domain.Amount
	OTP           string
}

type AccountNumberTransfer struct {
	Actor         domain.Actor
	FromAccountID int64
	AccountNumber string
	Amount        domain.Amount
	OTP           string
}

type PhoneTransfer struct {
	Actor         domain.Actor
	FromAccountID int64
	Phone         string
	BankID        string
	Amount        domain.Amount
	OTP           string
}

type Exchange struct {
	Actor         domain.Actor
	FromAccountID int64
	ToAccountID   int64
	Amount        domain.Amount
	OTP           string
}

// Internal moves money between two accounts of the caller. No fee, no daily
// limit; OTP only when configured or when a code is supplied.
func (s *TransferService) Internal(ctx context.Context, cmd InternalTransfer) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, s.policy.RequireOTPInternal); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.policy.checkTransferAmount(cmd.Amount); err != nil {
		return domain.Transaction{}, err
	}
	if cmd.FromAccountID == cmd.ToAccountID {
		return domain.Transaction{}, domain.ErrSameAccount
	}

	return s.execute(ctx, "internal_transfer", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		locked, err := tx.LockAccounts(ctx, cmd.FromAccountID, cmd.ToAccountID)
		if err != nil {
			return domain.Transaction{}, err
		}
		source, err := transferSource(locked, cmd.FromAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		target, err := ownedTarget(locked, cmd.ToAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		if source.Currency != target.Currency {
			return domain.Transaction{}, domain.ErrCurrencyMismatch
		}
		if source.Balance < cmd.Amount {
			return domain.Transaction{}, domain.ErrInsufficientFunds
		}
		return tx.ApplyAndRecord(ctx, moveDeltas(source.ID, target.ID, cmd.Amount, cmd.Amount), ledger.TransactionDraft{
			FromAccountID:  ptr(source.ID),
			ToAccountID:    ptr(target.ID),
			Subkind:        domain.SubkindInternalTransfer,
			Amount:         cmd.Amount,
			Currency:       source.Currency,
			Credited:       cmd.Amount,
			CreditCurrency: target.Currency,
			InitiatedBy:    cmd.Actor.UserID,
			Description:    "p2p_transfer",
			CreatedAt:      now,
		})
	})
}

// ByAccount transfers to an account number. A local number is a same-bank
// transfer without fee; a number the bank does not hold goes out through the
// external path with its fee.
func (s *TransferService) ByAccount(ctx context.Context, cmd AccountNumberTransfer) (domain.Transaction, error) {
	if err := s.prepareAccountNumberTransfer(ctx, cmd); err != nil {
		return domain.Transaction{}, err
	}

	return s.execute(ctx, "transfer_by_account", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		if err := tx.LockUser(ctx, cmd.Actor.UserID); err != nil {
			return domain.Transaction{}, err
		}
		target, err := tx.GetAccountByNumber(ctx, cmd.AccountNumber)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return s.externalByAccount(ctx, tx, cmd, now)
		}
		if err != nil {
			return domain.Transaction{}, err
		}
		if target.ID == cmd.FromAccountID {
			return domain.Transaction{}, domain.ErrSameAccount
		}

		locked, err := tx.LockAccounts(ctx, cmd.FromAccountID, target.ID)
		if err != nil {
			return domain.Transaction{}, err
		}
		source, err := transferSource(locked, cmd.FromAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		target = locked[target.ID]
		if !target.Active {
			return domain.Transaction{}, domain.ErrAccountInactive
		}
		return s.localTransfer(ctx, tx, cmd.Actor, source, target, cmd.Amount, now,
			fmt.Sprintf("p2p_transfer_by_account:%s:%s", source.Currency, domain.MaskAccountNumber(target.Number)))
	})
}

// ExternalByAccount sends money to another bank by account number. Numbers
// held by this bank are refused with domain.ErrAccountFoundInBank.
func (s *TransferService) ExternalByAccount(ctx context.Context, cmd AccountNumberTransfer) (domain.Transaction, error) {
	if err := s.prepareAccountNumberTransfer(ctx, cmd); err != nil {
		return domain.Transaction{}, err
	}

	return s.execute(ctx, "external_transfer", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		if err := tx.LockUser(ctx, cmd.Actor.UserID); err != nil {
			return domain.Transaction{}, err
		}
		_, err := tx.GetAccountByNumber(ctx, cmd.AccountNumber)
		if err == nil {
			return domain.Transaction{}, domain.ErrAccountFoundInBank
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Transaction{}, err
		}
		return s.externalByAccount(ctx, tx, cmd, now)
	})
}

func (s *TransferService) prepareAccountNumberTransfer(ctx context.Context, cmd AccountNumberTransfer) error {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return err
	}
	if !domain.ValidAccountNumber(cmd.AccountNumber) {
		return domain.ErrInvalidAccountNumber
	}
	return s.policy.checkTransferAmount(cmd.Amount)
}

// externalByAccount runs with the user lock already held.
func (s *TransferService) externalByAccount(ctx context.Context, tx ledger.Tx, cmd AccountNumberTransfer, now time.Time) (domain.Transaction, error) {
	fee := s.fees.Fee(RouteExternalAccount, cmd.Amount)
	return s.externalTransfer(ctx, tx, cmd.Actor, cmd.FromAccountID, cmd.Amount, fee, now, func(source domain.Account) string {
		return fmt.Sprintf("external_transfer:%s:%s:fee_%s", source.Currency, domain.MaskAccountNumber(cmd.AccountNumber), fee)
	})
}

// AccountCheck answers whether an account number is held by this bank.
type AccountCheck struct {
	Found  bool
	Masked string
}

func (s *TransferService) CheckAccountNumber(ctx context.Context, actor domain.Actor, number string) (AccountCheck, error) {
	if err := actor.CheckActive(); err != nil {
		return AccountCheck{}, err
	}
	if !domain.ValidAccountNumber(number) {
		return AccountCheck{}, domain.ErrInvalidAccountNumber
	}
	_, err := s.store.Reader().GetAccountByNumber(ctx, number)
	switch {
	case err == nil:
		return AccountCheck{Found: true, Masked: domain.MaskAccountNumber(number)}, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return AccountCheck{Found: false, Masked: domain.MaskAccountNumber(number)}, nil
	}
	return AccountCheck{}, fmt.Errorf("lookup account number: %w", err)
}

// ByPhone transfers to a phone number. With our bank code the phone must
// belong to one of our users, and the money lands on their preferred CHECKING
// account in the source currency. Any other known bank code is an external
// transfer with the by-phone fee.
func (s *TransferService) ByPhone(ctx context.Context, cmd PhoneTransfer) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return domain.Transaction{}, err
	}
	phone, err := directory.NormalizePhone(cmd.Phone)
	if err != nil {
		return domain.Transaction{}, err
	}
	local := cmd.BankID == directory.OurBankCode
	if !local {
		if err := directory.ValidateExternalBanks([]string{cmd.BankID}); err != nil {
			return domain.Transaction{}, err
		}
	}
	if err := s.policy.checkTransferAmount(cmd.Amount); err != nil {
		return domain.Transaction{}, err
	}

	if !local {
		return s.execute(ctx, "external_transfer", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
			if err := tx.LockUser(ctx, cmd.Actor.UserID); err != nil {
				return domain.Transaction{}, err
			}
			fee := s.fees.Fee(RouteExternalPhone, cmd.Amount)
			return s.externalTransfer(ctx, tx, cmd.Actor, cmd.FromAccountID, cmd.Amount, fee, now, func(domain.Account) string {
				return fmt.Sprintf("p2p_by_phone_external:%s:%s:fee_%s", cmd.BankID, phone, fee)
			})
		})
	}

	recipient, err := s.users.GetUserByPhone(ctx, phone)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Transaction{}, domain.ErrRecipientNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("lookup recipient: %w", err)
	}

	return s.execute(ctx, "transfer_by_phone", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		if err := tx.LockUser(ctx, cmd.Actor.UserID); err != nil {
			return domain.Transaction{}, err
		}
		// The source currency picks the recipient account, so read it first
		// and re-check everything once both rows are locked.
		unlocked, err := tx.GetAccount(ctx, cmd.FromAccountID)
		if errors.Is(err, domain.ErrAccountNotFound) || (err == nil && !cmd.Actor.Owns(unlocked)) {
			return domain.Transaction{}, domain.ErrAccountNotFound
		}
		if err != nil {
			return domain.Transaction{}, err
		}
		target, err := tx.FindRecipientAccount(ctx, recipient.ID, unlocked.Currency)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Transaction{}, domain.ErrNoSuitableRecipientAccount
		}
		if err != nil {
			return domain.Transaction{}, err
		}
		if target.ID == cmd.FromAccountID {
			return domain.Transaction{}, domain.ErrSameAccount
		}

		locked, err := tx.LockAccounts(ctx, cmd.FromAccountID, target.ID)
		if err != nil {
			return domain.Transaction{}, err
		}
		source, err := transferSource(locked, cmd.FromAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		target = locked[target.ID]
		if !target.Active || target.Type != domain.AccountTypeChecking {
			return domain.Transaction{}, domain.ErrNoSuitableRecipientAccount
		}
		return s.localTransfer(ctx, tx, cmd.Actor, source, target, cmd.Amount, now,
			fmt.Sprintf("p2p_transfer_by_phone:%s:%s", source.Currency, domain.MaskAccountNumber(target.Number)))
	})
}

// PhoneCheck lists where money for a phone number can be sent.
type PhoneCheck struct {
	InOurBank bool
	Banks     []directory.Bank
}

// CheckPhone reports our bank plus the recipient's linked banks when the
// phone belongs to one of our users, and every external bank otherwise.
func (s *TransferService) CheckPhone(ctx context.Context, actor domain.Actor, phone string) (PhoneCheck, error) {
	if err := actor.CheckActive(); err != nil {
		return PhoneCheck{}, err
	}
	external := PhoneCheck{InOurBank: false, Banks: directory.ExternalBanks()}
	normalized, err := directory.NormalizePhone(phone)
	if err != nil {
		return external, nil
	}
	recipient, err := s.users.GetUserByPhone(ctx, normalized)
	if errors.Is(err, domain.ErrUserNotFound) {
		return external, nil
	}
	if err != nil {
		return PhoneCheck{}, fmt.Errorf("lookup recipient: %w", err)
	}
	codes, err := s.users.ListUserBanks(ctx, recipient.ID)
	if err != nil {
		return PhoneCheck{}, fmt.Errorf("list recipient banks: %w", err)
	}
	ours, _ := directory.LookupBank(directory.OurBankCode)
	check := PhoneCheck{InOurBank: true, Banks: []directory.Bank{ours}}
	for _, code := range codes {
		if b, ok := directory.LookupBank(code); ok {
			check.Banks = append(check.Banks, b)
		}
	}
	return check, nil
}

// Exchange converts money between two of the caller's accounts in different
// currencies. The principal counts against the source currency's limit.
func (s *TransferService) Exchange(ctx context.Context, cmd Exchange) (domain.Transaction, error) {
	if err := s.authorize(ctx, cmd.Actor, cmd.OTP, true); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.policy.checkTransferAmount(cmd.Amount); err != nil {
		return domain.Transaction{}, err
	}
	if cmd.FromAccountID == cmd.ToAccountID {
		return domain.Transaction{}, domain.ErrSameAccount
	}

	return s.execute(ctx, "exchange", func(tx ledger.Tx, now time.Time) (domain.Transaction, error) {
		if err := tx.LockUser(ctx, cmd.Actor.UserID); err != nil {
			return domain.Transaction{}, err
		}
		locked, err := tx.LockAccounts(ctx, cmd.FromAccountID, cmd.ToAccountID)
		if err != nil {
			return domain.Transaction{}, err
		}
		source, err := transferSource(locked, cmd.FromAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		target, err := ownedTarget(locked, cmd.ToAccountID, cmd.Actor)
		if err != nil {
			return domain.Transaction{}, err
		}
		if source.Currency == target.Currency {
			return domain.Transaction{}, domain.ErrCurrencyMismatch
		}
		credited, err := s.rates.Convert(cmd.Amount, source.Currency, target.Currency)
		if err != nil {
			return domain.Transaction{}, err
		}
		if credited <= 0 {
			return domain.Transaction{}, domain.ErrAmountTooSmall
		}
		if source.Balance < cmd.Amount {
			return domain.Transaction{}, domain.ErrInsufficientFunds
		}
		if err := s.limits.Check(ctx, tx, cmd.Actor.UserID, source.Currency, cmd.Amount, now); err != nil {
			return domain.Transaction{}, err
		}
		return tx.ApplyAndRecord(ctx, moveDeltas(source.ID, target.ID, cmd.Amount, credited), ledger.TransactionDraft{
			FromAccountID:  ptr(source.ID),
			ToAccountID:    ptr(target.ID),
			Subkind:        domain.SubkindExchange,
			Amount:         cmd.Amount,
			Currency:       source.Currency,
			Credited:       credited,
			CreditCurrency: target.Currency,
			InitiatedBy:    cmd.Actor.UserID,
			Description:    fmt.Sprintf("fx_exchange:%s->%s:%s", source.Currency, target.Currency, credited),
			CreatedAt:      now,
		})
	})
}

// DailyUsage reports the caller's limit position per currency.
func (s *TransferService) DailyUsage(ctx context.Context, actor domain.Actor) ([]DailyUsage, error) {
	if err := actor.CheckActive(); err != nil {
		return nil, err
	}
	return s.limits.Usage(ctx, s.store.Reader(), actor.UserID, s.now())
}

func (s *TransferService) Rates() []CurrencyRate {
	return s.rates.Rates()
}

// localTransfer moves money between two locked accounts of this bank. A
// transfer to another user is p2p and counts against the daily limit; one to
// the caller's own account does not.
func (s *TransferService) localTransfer(ctx context.Context, tx ledger.Tx, actor domain.Actor, source, target domain.Account, amount domain.Amount, now time.Time, description string) (domain.Transaction, error) {
	if source.Currency != target.Currency {
		return domain.Transaction{}, domain.ErrCurrencyMismatch
	}
	fee := s.fees.Fee(RouteLocal, amount)
	if source.Balance < amount+fee {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	subkind := domain.SubkindInternalTransfer
	if !actor.Owns(target) {
		subkind = domain.SubkindP2PTransfer
		if err := s.limits.Check(ctx, tx, actor.UserID, source.Currency, amount, now); err != nil {
			return domain.Transaction{}, err
		}
	}
	return tx.ApplyAndRecord(ctx, moveDeltas(source.ID, target.ID, amount+fee, amount), ledger.TransactionDraft{
		FromAccountID:  ptr(source.ID),
		ToAccountID:    ptr(target.ID),
		Subkind:        subkind,
		Amount:         amount,
		Fee:            fee,
		Currency:       source.Currency,
		Credited:       amount,
		CreditCurrency: target.Currency,
		InitiatedBy:    actor.UserID,
		Description:    description,
		CreatedAt:      now,
	})
}

// externalTransfer debits principal plus fee from a locked source and credits
// nothing. The caller holds the user lock.
func (s *TransferService) externalTransfer(ctx context.Context, tx ledger.Tx, actor domain.Actor, fromID int64, amount, fee domain.Amount, now time.Time, describe func(domain.Account) string) (domain.Transaction, error) {
	locked, err := tx.LockAccounts(ctx, fromID)
	if err != nil {
		return domain.Transaction{}, err
	}
	source, err := transferSource(locked, fromID, actor)
	if err != nil {
		return domain.Transaction{}, err
	}
	if source.Balance < amount+fee {
		return domain.Transaction{}, domain.ErrInsufficientFunds
	}
	if err := s.limits.Check(ctx, tx, actor.UserID, source.Currency, amount, now); err != nil {
		return domain.Transaction{}, err
	}
	return tx.ApplyAndRecord(ctx, []ledger.BalanceDelta{{AccountID: source.ID, Delta: -(amount + fee)}}, ledger.TransactionDraft{
		FromAccountID: ptr(source.ID),
		Subkind:       domain.SubkindExternalTransfer,
		Amount:        amount,
		Fee:           fee,
		Currency:      source.Currency,
		InitiatedBy:   actor.UserID,
		Description:   describe(source),
		CreatedAt:     now,
	})
}

// authorize rejects blocked actors and checks the one-time code. An optional
// code is still verified when the caller supplies one.
func (s *TransferService) authorize(ctx context.Context, actor domain.Actor, code string, required bool) error {
	if err := actor.CheckActive(); err != nil {
		return err
	}
	if !required && code == "" {
		return nil
	}
	ok, err := s.otp.Verify(ctx, actor.UserID, code)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return domain.ErrInvalidOTP
	}
	return nil
}

// execute runs fn in one unit of work, records the outcome and publishes the
// committed transaction.
func (s *TransferService) execute(ctx context.Context, operation string, fn func(tx ledger.Tx, now time.Time) (domain.Transaction, error)) (domain.Transaction, error) {
	start := time.Now()
	var record domain.Transaction
	err := s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		var err error
		record, err = fn(tx, s.now().UTC())
		return err
	})
	observability.ObserveLedgerOperation(operation, resultLabel(err), time.Since(start))
	if err != nil {
		if _, ok := domain.AsError(err); !ok {
			zap.L().Error("ledger operation failed", zap.String("operation", operation), zap.Error(err))
		}
		return domain.Transaction{}, err
	}

	zap.L().Info("ledger operation completed",
		zap.String("operation", operation),
		zap.Int64("transaction_id", record.ID),
		zap.String("subkind", string(record.Subkind)),
		zap.Int64("initiated_by", record.InitiatedBy),
	)
	s.events.TransactionCompleted(ctx, record)
	return record, nil
}

// transferSource validates the account a transfer debits.
func transferSource(locked map[int64]domain.Account, id int64, actor domain.Actor) (domain.Account, error) {
	acc, ok := locked[id]
	if !ok || !actor.Owns(acc) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if !acc.Active {
		return domain.Account{}, domain.ErrAccountInactive
	}
	if acc.Type == domain.AccountTypeSavings {
		return domain.Account{}, domain.ErrTransferFromSavings
	}
	return acc, nil
}

func ownedTarget(locked map[int64]domain.Account, id int64, actor domain.Actor) (domain.Account, error) {
	acc, ok := locked[id]
	if !ok || !actor.Owns(acc) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if !acc.Active {
		return domain.Account{}, domain.ErrAccountInactive
	}
	return acc, nil
}

func moveDeltas(fromID, toID int64, debit, credit domain.Amount) []ledger.BalanceDelta {
	return []ledger.BalanceDelta{
		{AccountID: fromID, Delta: -debit},
		{AccountID: toID, Delta: credit},
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if de, ok := domain.AsError(err); ok {
		return de.Code
	}
	return "error"
}

func ptr[T any](v T) *T {
	return &v
}
