package repository

import (
	"context"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, from_account_id, to_account_id, type, subkind, amount, fee, currency,
	credit_amount, credit_currency, status, initiated_by, description, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t              domain.Transaction
		typ, subkind   string
		currency       string
		creditCurrency *string
		status         string
		amount, fee    int64
		credited       int64
	)
	err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &typ, &subkind, &amount, &fee, &currency,
		&credited, &creditCurrency, &status, &t.InitiatedBy, &t.Description, &t.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Type = domain.TxType(typ)
	t.Subkind = domain.Subkind(subkind)
	t.Amount = domain.Amount(amount)
	t.Fee = domain.Amount(fee)
	t.Currency = domain.Currency(currency)
	t.Credited = domain.Amount(credited)
	if creditCurrency != nil {
		t.CreditCurrency = domain.Currency(*creditCurrency)
	}
	t.Status = domain.TxStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

const createTransaction = `
INSERT INTO transactions (
	from_account_id, to_account_id, type, subkind, amount, fee, currency,
	credit_amount, credit_currency, status, initiated_by, description, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	FromAccountID  *int64
	ToAccountID    *int64
	Type           domain.TxType
	Subkind        domain.Subkind
	Amount         domain.Amount
	Fee            domain.Amount
	Currency       domain.Currency
	Credited       domain.Amount
	CreditCurrency domain.Currency
	Status         domain.TxStatus
	InitiatedBy    int64
	Description    string
	CreatedAt      time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (domain.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, createTransaction,
		arg.FromAccountID,
		arg.ToAccountID,
		string(arg.Type),
		string(arg.Subkind),
		int64(arg.Amount),
		int64(arg.Fee),
		string(arg.Currency),
		int64(arg.Credited),
		string(arg.CreditCurrency),
		string(arg.Status),
		arg.InitiatedBy,
		arg.Description,
		arg.CreatedAt,
	))
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransaction, id))
}

const listUserTransactions = `
SELECT ` + transactionColumns + `
FROM transactions t
WHERE (
	t.initiated_by = $1
	OR t.from_account_id IN (SELECT id FROM accounts WHERE user_id = $1)
	OR t.to_account_id IN (SELECT id FROM accounts WHERE user_id = $1)
)
AND ($2::timestamptz IS NULL OR t.created_at >= $2)
AND ($3::timestamptz IS NULL OR t.created_at < $3)
ORDER BY t.created_at DESC, t.id DESC
LIMIT $4 OFFSET $5`

type ListUserTransactionsParams struct {
	UserID int64
	From   *time.Time
	To     *time.Time
	Limit  int32
	Offset int32
}

func (q *Queries) ListUserTransactions(ctx context.Context, arg ListUserTransactionsParams) ([]domain.Transaction, error) {
	rows, err := q.db.Query(ctx, listUserTransactions, arg.UserID, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const sumInitiatedBySubkind = `
SELECT currency, COALESCE(SUM(amount), 0)::bigint
FROM transactions
WHERE initiated_by = $1
  AND subkind = ANY($2::text[])
  AND created_at >= $3
  AND created_at < $4
GROUP BY currency`

func (q *Queries) SumInitiatedBySubkind(ctx context.Context, userID int64, subkinds []string, from, to time.Time) (map[domain.Currency]domain.Amount, error) {
	rows, err := q.db.Query(ctx, sumInitiatedBySubkind, userID, subkinds, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[domain.Currency]domain.Amount)
	for rows.Next() {
		var (
			currency string
			sum      int64
		)
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, err
		}
		out[domain.Currency(currency)] = domain.Amount(sum)
	}
	return out, rows.Err()
}

// GetLedgerTotals returns, per currency, the sum of all balances, everything
// credited to an account and everything debited (principal plus fee).
const getLedgerTotals = `
WITH balances AS (
	SELECT currency, SUM(balance)::bigint AS total FROM accounts GROUP BY currency
), credits AS (
	SELECT credit_currency AS currency, SUM(credit_amount)::bigint AS total
	FROM transactions WHERE to_account_id IS NOT NULL GROUP BY credit_currency
), debits AS (
	SELECT currency, SUM(amount + fee)::bigint AS total
	FROM transactions WHERE from_account_id IS NOT NULL GROUP BY currency
), currencies AS (
	SELECT currency FROM balances UNION SELECT currency FROM credits UNION SELECT currency FROM debits
)
SELECT c.currency,
	COALESCE(b.total, 0)::bigint,
	COALESCE(cr.total, 0)::bigint,
	COALESCE(d.total, 0)::bigint
FROM currencies c
LEFT JOIN balances b ON b.currency = c.currency
LEFT JOIN credits cr ON cr.currency = c.currency
LEFT JOIN debits d ON d.currency = c.currency
ORDER BY c.currency`

type LedgerTotalsRow struct {
	Currency domain.Currency
	Balances domain.Amount
	Credits  domain.Amount
	Debits   domain.Amount
}

func (q *Queries) GetLedgerTotals(ctx context.Context) ([]LedgerTotalsRow, error) {
	rows, err := q.db.Query(ctx, getLedgerTotals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerTotalsRow
	for rows.Next() {
		var (
			currency string
			balances int64
			credits  int64
			debits   int64
		)
		if err := rows.Scan(&currency, &balances, &credits, &debits); err != nil {
			return nil, err
		}
		out = append(out, LedgerTotalsRow{
			Currency: domain.Currency(currency),
			Balances: domain.Amount(balances),
			Credits:  domain.Amount(credits),
			Debits:   domain.Amount(debits),
		})
	}
	return out, rows.Err()
}
