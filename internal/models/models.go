// Package models holds the JSON shapes the HTTP API returns. Money fields are
// domain.Amount, which encodes as a string with exactly two decimals.
package models

import (
	"time"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/service"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUser(u domain.User) User {
	return User{
		ID:        u.ID,
		Login:     u.Login,
		Role:      string(u.Role),
		Status:    string(u.Status),
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

type Account struct {
	ID            int64         `json:"id"`
	AccountNumber string        `json:"account_number"`
	Type          string        `json:"account_type"`
	Currency      string        `json:"currency"`
	Balance       domain.Amount `json:"balance"`
	IsActive      bool          `json:"is_active"`
	IsPrimary     bool          `json:"is_primary"`
	CreatedAt     time.Time     `json:"created_at"`
}

func NewAccount(a domain.Account) Account {
	return Account{
		ID:            a.ID,
		AccountNumber: a.Number,
		Type:          string(a.Type),
		Currency:      string(a.Currency),
		Balance:       a.Balance,
		IsActive:      a.Active,
		IsPrimary:     a.Primary,
		CreatedAt:     a.CreatedAt,
	}
}

func NewAccounts(in []domain.Account) []Account {
	out := make([]Account, 0, len(in))
	for _, a := range in {
		out = append(out, NewAccount(a))
	}
	return out
}

type Transaction struct {
	ID             int64         `json:"id"`
	FromAccountID  *int64        `json:"from_account_id"`
	ToAccountID    *int64        `json:"to_account_id"`
	Type           string        `json:"type"`
	Subkind        string        `json:"subkind"`
	Amount         domain.Amount `json:"amount"`
	Fee            domain.Amount `json:"fee"`
	Currency       string        `json:"currency"`
	CreditAmount   domain.Amount `json:"credit_amount"`
	CreditCurrency string        `json:"credit_currency,omitempty"`
	Status         string        `json:"status"`
	InitiatedBy    int64         `json:"initiated_by"`
	Description    string        `json:"description"`
	CreatedAt      time.Time     `json:"created_at"`
}

func NewTransaction(t domain.Transaction) Transaction {
	return Transaction{
		ID:             t.ID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Type:           string(t.Type),
		Subkind:        string(t.Subkind),
		Amount:         t.Amount,
		Fee:            t.Fee,
		Currency:       string(t.Currency),
		CreditAmount:   t.Credited,
		CreditCurrency: string(t.CreditCurrency),
		Status:         string(t.Status),
		InitiatedBy:    t.InitiatedBy,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
	}
}

func NewTransactions(in []domain.Transaction) []Transaction {
	out := make([]Transaction, 0, len(in))
	for _, t := range in {
		out = append(out, NewTransaction(t))
	}
	return out
}

type DailyUsage struct {
	Currency   string        `json:"currency"`
	DailyLimit domain.Amount `json:"daily_limit"`
	UsedToday  domain.Amount `json:"used_today"`
	Remaining  domain.Amount `json:"remaining"`
}

func NewDailyUsage(in []service.DailyUsage) []DailyUsage {
	out := make([]DailyUsage, 0, len(in))
	for _, u := range in {
		out = append(out, DailyUsage{
			Currency:   string(u.Currency),
			DailyLimit: u.DailyLimit,
			UsedToday:  u.UsedToday,
			Remaining:  u.Remaining,
		})
	}
	return out
}

type Rate struct {
	Base        string          `json:"base"`
	ToReference decimal.Decimal `json:"to_reference"`
}

type Rates struct {
	Reference string `json:"reference"`
	Rates     []Rate `json:"rates"`
}

func NewRates(in []service.CurrencyRate) Rates {
	out := Rates{Reference: string(domain.ReferenceCurrency), Rates: make([]Rate, 0, len(in))}
	for _, r := range in {
		out.Rates = append(out.Rates, Rate{Base: string(r.Currency), ToReference: r.ToReference})
	}
	return out
}

type AccountCheck struct {
	Found  bool   `json:"found"`
	Masked string `json:"masked"`
}

type PhoneCheck struct {
	InOurBank      bool             `json:"in_our_bank"`
	AvailableBanks []directory.Bank `json:"available_banks"`
}

type Income struct {
	Salary   domain.Amount `json:"salary"`
	Gift     domain.Amount `json:"gift"`
	TopUp    domain.Amount `json:"topup"`
	Transfer domain.Amount `json:"transfer"`
}

type Expense struct {
	Payment  domain.Amount `json:"payment"`
	Transfer domain.Amount `json:"transfer"`
	Exchange domain.Amount `json:"exchange"`
	Fees     domain.Amount `json:"fees"`
}

type CurrencySummary struct {
	Currency string  `json:"currency"`
	Income   Income  `json:"income"`
	Expense  Expense `json:"expense"`
}

func NewSummary(in []service.CurrencySummary) []CurrencySummary {
	out := make([]CurrencySummary, 0, len(in))
	for _, s := range in {
		out = append(out, CurrencySummary{
			Currency: string(s.Currency),
			Income:   Income(s.Income),
			Expense:  Expense(s.Expense),
		})
	}
	return out
}
