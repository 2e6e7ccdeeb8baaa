package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

// view answers reads from committed state, overlaid with the staged writes
// of tx when it is non-nil.
type view struct {
	s  *Store
	tx *tx
}

func (v *view) overlay(acc domain.Account) domain.Account {
	if v.tx == nil {
		return acc
	}
	acc.Balance += v.tx.deltas[acc.ID]
	if v.tx.deactivated[acc.ID] {
		acc.Active = false
	}
	if p, ok := v.tx.primary[acc.ID]; ok {
		acc.Primary = p
	}
	return acc
}

func (v *view) account(id int64) (domain.Account, bool) {
	if v.tx != nil {
		if acc, ok := v.tx.created[id]; ok {
			return v.overlay(acc), true
		}
	}
	v.s.mu.RLock()
	acc, ok := v.s.accounts[id]
	v.s.mu.RUnlock()
	if !ok {
		return domain.Account{}, false
	}
	return v.overlay(acc), true
}

func (v *view) allAccounts() []domain.Account {
	v.s.mu.RLock()
	out := v.copyAccounts()
	v.s.mu.RUnlock()
	return v.overlayAccounts(out)
}

func (v *view) allTransactions() []domain.Transaction {
	v.s.mu.RLock()
	out := v.copyTransactions()
	v.s.mu.RUnlock()
	return v.overlayTransactions(out)
}

// snapshot reads accounts and the log under one lock so no commit lands
// between them.
func (v *view) snapshot() ([]domain.Account, []domain.Transaction) {
	v.s.mu.RLock()
	accs, txs := v.copyAccounts(), v.copyTransactions()
	v.s.mu.RUnlock()
	return v.overlayAccounts(accs), v.overlayTransactions(txs)
}

// copyAccounts and copyTransactions require s.mu to be held.
func (v *view) copyAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(v.s.accounts))
	for _, acc := range v.s.accounts {
		out = append(out, acc)
	}
	return out
}

func (v *view) copyTransactions() []domain.Transaction {
	out := make([]domain.Transaction, len(v.s.txs))
	copy(out, v.s.txs)
	return out
}

func (v *view) overlayAccounts(out []domain.Account) []domain.Account {
	if v.tx != nil {
		for _, acc := range v.tx.created {
			out = append(out, acc)
		}
	}
	for i := range out {
		out[i] = v.overlay(out[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *view) overlayTransactions(out []domain.Transaction) []domain.Transaction {
	if v.tx != nil {
		out = append(out, v.tx.records...)
	}
	return out
}

func (v *view) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	acc, ok := v.account(id)
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (v *view) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	for _, acc := range v.allAccounts() {
		if acc.Number == number {
			return acc, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (v *view) ListAccounts(ctx context.Context, userID int64, activeOnly bool) ([]domain.Account, error) {
	var out []domain.Account
	for _, acc := range v.allAccounts() {
		if acc.UserID != userID || (activeOnly && !acc.Active) {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (v *view) FindRecipientAccount(ctx context.Context, userID int64, currency domain.Currency) (domain.Account, error) {
	var found *domain.Account
	for _, acc := range v.allAccounts() {
		if acc.UserID != userID || acc.Currency != currency || acc.Type != domain.AccountTypeChecking || !acc.Active {
			continue
		}
		if acc.Primary {
			return acc, nil
		}
		if found == nil {
			a := acc
			found = &a
		}
	}
	if found == nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *found, nil
}

func (v *view) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	v.s.mu.RLock()
	idx, ok := v.s.txIndex[id]
	var rec domain.Transaction
	if ok {
		rec = v.s.txs[idx]
	}
	v.s.mu.RUnlock()
	if ok {
		return rec, nil
	}
	if v.tx != nil {
		for _, r := range v.tx.records {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return domain.Transaction{}, domain.ErrTransactionNotFound
}

func (v *view) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	owned := make(map[int64]bool)
	for _, acc := range v.allAccounts() {
		if acc.UserID == filter.UserID {
			owned[acc.ID] = true
		}
	}
	touches := func(id *int64) bool { return id != nil && owned[*id] }

	var out []domain.Transaction
	for _, rec := range v.allTransactions() {
		if rec.InitiatedBy != filter.UserID && !touches(rec.FromAccountID) && !touches(rec.ToAccountID) {
			continue
		}
		if !filter.From.IsZero() && rec.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rec.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (v *view) SumInitiated(ctx context.Context, userID int64, subkinds []domain.Subkind, from, to time.Time) (map[domain.Currency]domain.Amount, error) {
	wanted := make(map[domain.Subkind]bool, len(subkinds))
	for _, sk := range subkinds {
		wanted[sk] = true
	}
	out := make(map[domain.Currency]domain.Amount)
	for _, rec := range v.allTransactions() {
		if rec.InitiatedBy != userID || !wanted[rec.Subkind] {
			continue
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		out[rec.Currency] += rec.Amount
	}
	return out, nil
}

func (v *view) Totals(ctx context.Context) ([]ledger.CurrencyTotals, error) {
	byCurrency := make(map[domain.Currency]*ledger.CurrencyTotals)
	get := func(c domain.Currency) *ledger.CurrencyTotals {
		t, ok := byCurrency[c]
		if !ok {
			t = &ledger.CurrencyTotals{Currency: c}
			byCurrency[c] = t
		}
		return t
	}
	accounts, txs := v.snapshot()
	for _, acc := range accounts {
		get(acc.Currency).Balances += acc.Balance
	}
	for _, rec := range txs {
		if rec.ToAccountID != nil {
			get(rec.CreditCurrency).Credits += rec.Credited
		}
		if rec.FromAccountID != nil {
			get(rec.Currency).Debits += rec.Total()
		}
	}

	out := make([]ledger.CurrencyTotals, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}
