package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

type reader struct {
	q *Queries
}

func (r *reader) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	acc, err := r.q.GetAccount(ctx, id)
	return acc, mapError(err, domain.ErrAccountNotFound)
}

func (r *reader) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	acc, err := r.q.GetAccountByNumber(ctx, number)
	return acc, mapError(err, domain.ErrAccountNotFound)
}

func (r *reader) ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]domain.Account, error) {
	accs, err := r.q.ListAccountsByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accs, nil
}

func (r *reader) FindRecipientAccount(ctx context.Context, userID int64, currency domain.Currency) (domain.Account, error) {
	acc, err := r.q.FindRecipientAccount(ctx, userID, currency)
	return acc, mapError(err, domain.ErrAccountNotFound)
}

func (r *reader) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	t, err := r.q.GetTransaction(ctx, id)
	return t, mapError(err, domain.ErrTransactionNotFound)
}

func (r *reader) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	arg := ListUserTransactionsParams{
		UserID: filter.UserID,
		Limit:  int32(filter.Limit),
		Offset: int32(filter.Offset),
	}
	if arg.Limit <= 0 {
		arg.Limit = 1 << 30
	}
	if !filter.From.IsZero() {
		arg.From = &filter.From
	}
	if !filter.To.IsZero() {
		arg.To = &filter.To
	}
	txs, err := r.q.ListUserTransactions(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *reader) SumInitiated(ctx context.Context, userID int64, subkinds []domain.Subkind, from, to time.Time) (map[domain.Currency]domain.Amount, error) {
	names := make([]string, len(subkinds))
	for i, sk := range subkinds {
		names[i] = string(sk)
	}
	sums, err := r.q.SumInitiatedBySubkind(ctx, userID, names, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum initiated: %w", err)
	}
	return sums, nil
}

func (r *reader) Totals(ctx context.Context) ([]ledger.CurrencyTotals, error) {
	rows, err := r.q.GetLedgerTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	out := make([]ledger.CurrencyTotals, len(rows))
	for i, row := range rows {
		out[i] = ledger.CurrencyTotals{
			Currency: row.Currency,
			Balances: row.Balances,
			Credits:  row.Credits,
			Debits:   row.Debits,
		}
	}
	return out, nil
}

type pgTx struct {
	reader
	locked map[int64]bool
}

func (t *pgTx) LockUser(ctx context.Context, userID int64) error {
	if err := t.q.LockUser(ctx, userID); err != nil {
		return fmt.Errorf("lock user %d: %w", userID, mapError(err, nil))
	}
	return nil
}

func (t *pgTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]domain.Account, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	accs, err := t.q.LockAccountsForUpdate(ctx, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", mapError(err, nil))
	}
	out := make(map[int64]domain.Account, len(accs))
	for _, acc := range accs {
		t.locked[acc.ID] = true
		out[acc.ID] = acc
	}
	return out, nil
}

func (t *pgTx) ApplyAndRecord(ctx context.Context, deltas []ledger.BalanceDelta, draft ledger.TransactionDraft) (domain.Transaction, error) {
	for _, d := range deltas {
		if !t.locked[d.AccountID] {
			return domain.Transaction{}, fmt.Errorf("apply delta: account %d is not locked", d.AccountID)
		}
		balance, err := t.q.AddAccountBalance(ctx, d.AccountID, d.Delta)
		if err != nil {
			return domain.Transaction{}, mapError(err, domain.ErrAccountInactive)
		}
		if balance > domain.MaxAmount {
			return domain.Transaction{}, domain.ErrAmountTooLarge
		}
	}

	rec := draft.Record(0)
	created, err := t.q.CreateTransaction(ctx, CreateTransactionParams{
		FromAccountID:  rec.FromAccountID,
		ToAccountID:    rec.ToAccountID,
		Type:           rec.Type,
		Subkind:        rec.Subkind,
		Amount:         rec.Amount,
		Fee:            rec.Fee,
		Currency:       rec.Currency,
		Credited:       rec.Credited,
		CreditCurrency: rec.CreditCurrency,
		Status:         rec.Status,
		InitiatedBy:    rec.InitiatedBy,
		Description:    rec.Description,
		CreatedAt:      rec.CreatedAt,
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", mapError(err, nil))
	}
	return created, nil
}

func (t *pgTx) CountActiveAccounts(ctx context.Context, userID int64) (map[domain.Currency]int, error) {
	counts, err := t.q.CountActiveAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	return counts, nil
}

func (t *pgTx) InsertAccount(ctx context.Context, acc domain.Account) (domain.Account, error) {
	created, err := t.q.InsertAccount(ctx, InsertAccountParams{
		Number:   acc.Number,
		UserID:   acc.UserID,
		Type:     acc.Type,
		Currency: acc.Currency,
		Primary:  acc.Primary,
	})
	if err != nil {
		return domain.Account{}, mapError(err, domain.ErrAccountNumberTaken)
	}
	return created, nil
}

func (t *pgTx) DeactivateAccount(ctx context.Context, id int64) error {
	n, err := t.q.DeactivateAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) SetPrimary(ctx context.Context, userID int64, accountID int64, currency domain.Currency) error {
	if err := t.q.SetPrimaryAccount(ctx, userID, accountID, currency); err != nil {
		return fmt.Errorf("set primary: %w", err)
	}
	return nil
}

func (t *pgTx) InsertAudit(ctx context.Context, entry ledger.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return t.q.InsertAuditLog(ctx, InsertAuditLogParams{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Metadata:   metadata,
		CreatedAt:  createdAt,
	})
}
