package repository

import (
	"context"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, account_number, user_id, account_type, currency, balance, is_active, is_primary, created_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		acc      domain.Account
		typ      string
		currency string
		balance  int64
	)
	if err := row.Scan(&acc.ID, &acc.Number, &acc.UserID, &typ, &currency, &balance, &acc.Active, &acc.Primary, &acc.CreatedAt); err != nil {
		return domain.Account{}, err
	}
	acc.Type = domain.AccountType(typ)
	acc.Currency = domain.Currency(currency)
	acc.Balance = domain.Amount(balance)
	return acc, nil
}

func scanAccounts(rows pgx.Rows) ([]domain.Account, error) {
	defer rows.Close()
	var out []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccount, id))
}

const getAccountByNumber = `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

func (q *Queries) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByNumber, number))
}

const listAccountsByUser = `
SELECT ` + accountColumns + `
FROM accounts
WHERE user_id = $1 AND (is_active OR NOT $2::bool)
ORDER BY id`

func (q *Queries) ListAccountsByUser(ctx context.Context, userID int64, activeOnly bool) ([]domain.Account, error) {
	rows, err := q.db.Query(ctx, listAccountsByUser, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

const findRecipientAccount = `
SELECT ` + accountColumns + `
FROM accounts
WHERE user_id = $1 AND currency = $2 AND account_type = 'CHECKING' AND is_active
ORDER BY is_primary DESC, id
LIMIT 1`

func (q *Queries) FindRecipientAccount(ctx context.Context, userID int64, currency domain.Currency) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, findRecipientAccount, userID, string(currency)))
}

// Row locks are always taken in ascending id order.
const lockAccountsForUpdate = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = ANY($1::bigint[])
ORDER BY id
FOR UPDATE`

func (q *Queries) LockAccountsForUpdate(ctx context.Context, ids []int64) ([]domain.Account, error) {
	rows, err := q.db.Query(ctx, lockAccountsForUpdate, ids)
	if err != nil {
		return nil, err
	}
	return scanAccounts(rows)
}

const lockUser = `SELECT pg_advisory_xact_lock($1)`

func (q *Queries) LockUser(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, lockUser, userID)
	return err
}

const addAccountBalance = `
UPDATE accounts
SET balance = balance + $2
WHERE id = $1 AND is_active
RETURNING balance`

func (q *Queries) AddAccountBalance(ctx context.Context, id int64, delta domain.Amount) (domain.Amount, error) {
	var balance int64
	err := q.db.QueryRow(ctx, addAccountBalance, id, int64(delta)).Scan(&balance)
	return domain.Amount(balance), err
}

type InsertAccountParams struct {
	Number   string
	UserID   int64
	Type     domain.AccountType
	Currency domain.Currency
	Primary  bool
}

const insertAccount = `
INSERT INTO accounts (account_number, user_id, account_type, currency, balance, is_active, is_primary)
VALUES ($1, $2, $3, $4, 0, TRUE, $5)
ON CONFLICT ON CONSTRAINT accounts_account_number_key DO NOTHING
RETURNING ` + accountColumns

// InsertAccount returns pgx.ErrNoRows when the number is taken, leaving the
// surrounding transaction usable for another attempt.
func (q *Queries) InsertAccount(ctx context.Context, arg InsertAccountParams) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, insertAccount, arg.Number, arg.UserID, string(arg.Type), string(arg.Currency), arg.Primary))
}

const countActiveAccounts = `
SELECT currency, COUNT(*)
FROM accounts
WHERE user_id = $1 AND is_active
GROUP BY currency`

func (q *Queries) CountActiveAccounts(ctx context.Context, userID int64) (map[domain.Currency]int, error) {
	rows, err := q.db.Query(ctx, countActiveAccounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[domain.Currency]int)
	for rows.Next() {
		var (
			currency string
			n        int64
		)
		if err := rows.Scan(&currency, &n); err != nil {
			return nil, err
		}
		out[domain.Currency(currency)] = int(n)
	}
	return out, rows.Err()
}

const deactivateAccount = `UPDATE accounts SET is_active = FALSE, is_primary = FALSE WHERE id = $1`

func (q *Queries) DeactivateAccount(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateAccount, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setPrimaryAccount = `
UPDATE accounts
SET is_primary = (id = $2)
WHERE user_id = $1 AND currency = $3 AND is_primary <> (id = $2)`

func (q *Queries) SetPrimaryAccount(ctx context.Context, userID, accountID int64, currency domain.Currency) error {
	_, err := q.db.Exec(ctx, setPrimaryAccount, userID, accountID, string(currency))
	return err
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   int64
	ActorID    int64
	Action     string
	Metadata   []byte
	CreatedAt  time.Time
}

const insertAuditLog = `
INSERT INTO audit_log (entity_type, entity_id, actor_id, action, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	_, err := q.db.Exec(ctx, insertAuditLog, arg.EntityType, arg.EntityID, arg.ActorID, arg.Action, arg.Metadata, arg.CreatedAt)
	return err
}
