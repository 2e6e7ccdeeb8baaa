// Package ledger defines the durable store contract the transfer engine runs
// on: accounts, the append-only transaction log and the locking primitives
// that serialize every balance mutation.
package ledger

import (
	"context"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
)

// Store is the single source of truth for balances. Implementations must
// make RunInTx all-or-nothing: if fn returns an error nothing it wrote is
// visible to anyone.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	Reader() Reader
}

// Reader holds the read-only queries. Inside a Tx they observe the
// transaction's own writes.
type Reader interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (domain.Account, error)
	ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]domain.Account, error)
	// FindRecipientAccount returns the preferred active CHECKING account of
	// userID in currency: the primary one, else the lowest id.
	FindRecipientAccount(ctx context.Context, userID int64, currency domain.Currency) (domain.Account, error)
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	// SumInitiated totals the principal of transactions initiated by userID
	// with one of the given subkinds, created in [from, to), per currency.
	SumInitiated(ctx context.Context, userID int64, subkinds []domain.Subkind, from, to time.Time) (map[domain.Currency]domain.Amount, error)
	Totals(ctx context.Context) ([]CurrencyTotals, error)
}

// Tx is one atomic unit of work.
type Tx interface {
	Reader

	// LockUser takes a per-user lock held until the unit of work ends. Every
	// operation that takes it does so before locking any account row.
	LockUser(ctx context.Context, userID int64) error
	// LockAccounts locks all given accounts in ascending id order and returns
	// the ones that exist. Missing ids are simply absent from the map.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]domain.Account, error)
	// ApplyAndRecord applies the balance deltas to locked accounts and appends
	// the transaction. A delta that would make a balance negative fails with
	// domain.ErrInsufficientFunds.
	ApplyAndRecord(ctx context.Context, deltas []BalanceDelta, draft TransactionDraft) (domain.Transaction, error)

	CountActiveAccounts(ctx context.Context, userID int64) (map[domain.Currency]int, error)
	// InsertAccount fails with domain.ErrAccountNumberTaken on a number clash.
	InsertAccount(ctx context.Context, acc domain.Account) (domain.Account, error)
	DeactivateAccount(ctx context.Context, id int64) error
	SetPrimary(ctx context.Context, userID int64, accountID int64, currency domain.Currency) error
	InsertAudit(ctx context.Context, entry AuditEntry) error
}

// BalanceDelta is a signed change to one locked account.
type BalanceDelta struct {
	AccountID int64
	Delta     domain.Amount
}

// TransactionDraft is a transaction before the store assigns its id.
type TransactionDraft struct {
	FromAccountID  *int64
	ToAccountID    *int64
	Subkind        domain.Subkind
	Amount         domain.Amount
	Fee            domain.Amount
	Currency       domain.Currency
	Credited       domain.Amount
	CreditCurrency domain.Currency
	InitiatedBy    int64
	Description    string
	CreatedAt      time.Time
}

// Record materialises the draft with the store-assigned id.
func (d TransactionDraft) Record(id int64) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		FromAccountID:  d.FromAccountID,
		ToAccountID:    d.ToAccountID,
		Type:           d.Subkind.Type(),
		Subkind:        d.Subkind,
		Amount:         d.Amount,
		Fee:            d.Fee,
		Currency:       d.Currency,
		Credited:       d.Credited,
		CreditCurrency: d.CreditCurrency,
		Status:         domain.TxStatusCompleted,
		InitiatedBy:    d.InitiatedBy,
		Description:    d.Description,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

// TransactionFilter selects a user's history: transactions they initiated or
// that touch one of their accounts, newest first.
type TransactionFilter struct {
	UserID int64
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// CurrencyTotals is what reconciliation compares per currency.
type CurrencyTotals struct {
	Currency domain.Currency
	Balances domain.Amount
	Credits  domain.Amount
	Debits   domain.Amount
}

// Net is the balance implied by the transaction log.
func (t CurrencyTotals) Net() domain.Amount {
	return t.Credits - t.Debits
}

// AuditEntry records account lifecycle changes.
type AuditEntry struct {
	EntityType string
	EntityID   int64
	ActorID    int64
	Action     string
	Metadata   map[string]any
	CreatedAt  time.Time
}
