package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

type tx struct {
	*view

	releases []func()
	locked   map[int64]bool
	users    map[int64]bool

	deltas      map[int64]domain.Amount
	deactivated map[int64]bool
	primary     map[int64]bool
	created     map[int64]domain.Account
	records     []domain.Transaction
	audit       []ledger.AuditEntry
}

func newTx(s *Store) *tx {
	t := &tx{
		locked:      make(map[int64]bool),
		users:       make(map[int64]bool),
		deltas:      make(map[int64]domain.Amount),
		deactivated: make(map[int64]bool),
		primary:     make(map[int64]bool),
		created:     make(map[int64]domain.Account),
	}
	t.view = &view{s: s, tx: t}
	return t
}

func (t *tx) LockUser(ctx context.Context, userID int64) error {
	if t.users[userID] {
		return nil
	}
	release, err := t.s.userLocks.acquire(ctx, userID)
	if err != nil {
		return err
	}
	t.users[userID] = true
	t.releases = append(t.releases, release)
	return nil
}

func (t *tx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]domain.Account, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]domain.Account, len(sorted))
	for _, id := range sorted {
		if !t.locked[id] {
			release, err := t.s.accountLocks.acquire(ctx, id)
			if err != nil {
				return nil, err
			}
			t.locked[id] = true
			t.releases = append(t.releases, release)
		}
		if acc, ok := t.account(id); ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (t *tx) ApplyAndRecord(ctx context.Context, deltas []ledger.BalanceDelta, draft ledger.TransactionDraft) (domain.Transaction, error) {
	next := make(map[int64]domain.Amount, len(deltas))
	for _, d := range deltas {
		if !t.locked[d.AccountID] {
			return domain.Transaction{}, fmt.Errorf("apply delta: account %d is not locked", d.AccountID)
		}
		acc, ok := t.account(d.AccountID)
		if !ok {
			return domain.Transaction{}, domain.ErrAccountNotFound
		}
		if !acc.Active {
			return domain.Transaction{}, domain.ErrAccountInactive
		}
		balance := acc.Balance + next[d.AccountID] + d.Delta
		if balance < 0 {
			return domain.Transaction{}, domain.ErrInsufficientFunds
		}
		if balance > domain.MaxAmount {
			return domain.Transaction{}, domain.ErrAmountTooLarge
		}
		next[d.AccountID] += d.Delta
	}
	for id, delta := range next {
		t.deltas[id] += delta
	}

	t.s.mu.Lock()
	t.s.nextTxID++
	id := t.s.nextTxID
	t.s.mu.Unlock()

	rec := draft.Record(id)
	t.records = append(t.records, rec)
	return rec, nil
}

func (t *tx) CountActiveAccounts(ctx context.Context, userID int64) (map[domain.Currency]int, error) {
	out := make(map[domain.Currency]int)
	for _, acc := range t.allAccounts() {
		if acc.UserID == userID && acc.Active {
			out[acc.Currency]++
		}
	}
	return out, nil
}

func (t *tx) InsertAccount(ctx context.Context, acc domain.Account) (domain.Account, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, taken := t.s.numbers[acc.Number]; taken {
		return domain.Account{}, domain.ErrAccountNumberTaken
	}
	t.s.nextAccountID++
	acc.ID = t.s.nextAccountID
	// Reserve the number now so a concurrent unit of work cannot take it.
	t.s.numbers[acc.Number] = acc.ID
	t.created[acc.ID] = acc
	return acc, nil
}

func (t *tx) DeactivateAccount(ctx context.Context, id int64) error {
	if _, ok := t.account(id); !ok {
		return domain.ErrAccountNotFound
	}
	t.deactivated[id] = true
	t.primary[id] = false
	return nil
}

func (t *tx) SetPrimary(ctx context.Context, userID int64, accountID int64, currency domain.Currency) error {
	for _, acc := range t.allAccounts() {
		if acc.UserID == userID && acc.Currency == currency {
			t.primary[acc.ID] = acc.ID == accountID
		}
	}
	return nil
}

func (t *tx) InsertAudit(ctx context.Context, entry ledger.AuditEntry) error {
	t.audit = append(t.audit, entry)
	return nil
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, acc := range t.created {
		s.accounts[id] = acc
	}
	for id, delta := range t.deltas {
		acc := s.accounts[id]
		acc.Balance += delta
		s.accounts[id] = acc
	}
	for id := range t.deactivated {
		acc := s.accounts[id]
		acc.Active = false
		s.accounts[id] = acc
	}
	for id, primary := range t.primary {
		acc := s.accounts[id]
		acc.Primary = primary
		s.accounts[id] = acc
	}
	for _, rec := range t.records {
		s.txIndex[rec.ID] = len(s.txs)
		s.txs = append(s.txs, rec)
	}
	s.audit = append(s.audit, t.audit...)
}

func (t *tx) rollback() {
	if len(t.created) == 0 {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, acc := range t.created {
		delete(t.s.numbers, acc.Number)
	}
}

func (t *tx) release() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}
