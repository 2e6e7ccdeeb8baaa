package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ReportService serves read-only views of the ledger.
type ReportService struct {
	store ledger.Store
}

func NewReportService(store ledger.Store) *ReportService {
	return &ReportService{store: store}
}

// Get returns a transaction visible to the caller: they initiated it, own
// one of its accounts, or are an admin. Anything else is reported as not
// found.
func (s *ReportService) Get(ctx context.Context, actor domain.Actor, id int64) (domain.Transaction, error) {
	if err := actor.CheckActive(); err != nil {
		return domain.Transaction{}, err
	}
	r := s.store.Reader()
	rec, err := r.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if actor.IsAdmin() || rec.InitiatedBy == actor.UserID {
		return rec, nil
	}
	owned, err := s.ownedAccounts(ctx, r, actor.UserID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if touches(owned, rec.FromAccountID) || touches(owned, rec.ToAccountID) {
		return rec, nil
	}
	return domain.Transaction{}, domain.ErrTransactionNotFound
}

type HistoryQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// List returns the caller's history newest first.
func (s *ReportService) List(ctx context.Context, actor domain.Actor, q HistoryQuery) ([]domain.Transaction, error) {
	if err := actor.CheckActive(); err != nil {
		return nil, err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, domain.ErrInvalidPagination
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}
	q.Limit = min(q.Limit, maxPageSize)
	return s.store.Reader().ListTransactions(ctx, ledger.TransactionFilter{
		UserID: actor.UserID,
		From:   q.From,
		To:     q.To,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

type IncomeSummary struct {
	Salary   domain.Amount
	Gift     domain.Amount
	TopUp    domain.Amount
	Transfer domain.Amount
}

type ExpenseSummary struct {
	Payment  domain.Amount
	Transfer domain.Amount
	Exchange domain.Amount
	Fees     domain.Amount
}

type CurrencySummary struct {
	Currency domain.Currency
	Income   IncomeSummary
	Expense  ExpenseSummary
}

// Summary totals income and expense per currency over [from, to). Moves
// between the caller's own accounts are neither.
func (s *ReportService) Summary(ctx context.Context, actor domain.Actor, from, to time.Time) ([]CurrencySummary, error) {
	if err := actor.CheckActive(); err != nil {
		return nil, err
	}
	r := s.store.Reader()
	owned, err := s.ownedAccounts(ctx, r, actor.UserID)
	if err != nil {
		return nil, err
	}
	records, err := r.ListTransactions(ctx, ledger.TransactionFilter{UserID: actor.UserID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	byCurrency := make(map[domain.Currency]*CurrencySummary)
	get := func(c domain.Currency) *CurrencySummary {
		if cs, ok := byCurrency[c]; ok {
			return cs
		}
		cs := &CurrencySummary{Currency: c}
		byCurrency[c] = cs
		return cs
	}

	for _, rec := range records {
		in, out := touches(owned, rec.ToAccountID), touches(owned, rec.FromAccountID)
		switch rec.Subkind {
		case domain.SubkindAdminCredit:
			if in {
				get(rec.CreditCurrency).Income.Salary += rec.Credited
			}
		case domain.SubkindTopUpGift:
			if in {
				get(rec.CreditCurrency).Income.Gift += rec.Credited
			}
		case domain.SubkindTopUpSelf, domain.SubkindTopUpHelper:
			if in {
				get(rec.CreditCurrency).Income.TopUp += rec.Credited
			}
		case domain.SubkindMobilePayment, domain.SubkindVendorPayment:
			if out {
				get(rec.Currency).Expense.Payment += rec.Amount
			}
		case domain.SubkindExchange:
			if out {
				get(rec.Currency).Expense.Exchange += rec.Amount
			}
		case domain.SubkindP2PTransfer, domain.SubkindExternalTransfer:
			switch {
			case out && !in:
				cs := get(rec.Currency)
				cs.Expense.Transfer += rec.Amount
				cs.Expense.Fees += rec.Fee
			case in && !out:
				get(rec.CreditCurrency).Income.Transfer += rec.Credited
			}
		}
	}

	out := make([]CurrencySummary, 0, len(byCurrency))
	for _, cs := range byCurrency {
		out = append(out, *cs)
	}
	order := make(map[domain.Currency]int, len(domain.Currencies))
	for i, c := range domain.Currencies {
		order[c] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Currency] < order[out[j].Currency] })
	return out, nil
}

func (s *ReportService) ownedAccounts(ctx context.Context, r ledger.Reader, userID int64) (map[int64]bool, error) {
	accounts, err := r.ListAccounts(ctx, userID, false)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	owned := make(map[int64]bool, len(accounts))
	for _, acc := range accounts {
		owned[acc.ID] = true
	}
	return owned, nil
}

func touches(owned map[int64]bool, id *int64) bool {
	return id != nil && owned[*id]
}
