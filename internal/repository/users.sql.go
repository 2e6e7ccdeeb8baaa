package repository

import (
	"context"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, login, password_hash, role, status, COALESCE(phone, ''), created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u            domain.User
		role, status string
	)
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &role, &status, &u.Phone, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return u, nil
}

type CreateUserParams struct {
	Login        string
	PasswordHash string
	Role         domain.Role
	Status       domain.UserStatus
	Phone        string
}

const createUser = `
INSERT INTO users (login, password_hash, role, status, phone)
VALUES (lower($1), $2, $3, $4, NULLIF($5, ''))
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.Login, arg.PasswordHash, string(arg.Role), string(arg.Status), arg.Phone))
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const getUserByLogin = `SELECT ` + userColumns + ` FROM users WHERE login = lower($1)`

func (q *Queries) GetUserByLogin(ctx context.Context, login string) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByLogin, login))
}

const getUserByPhone = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

func (q *Queries) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByPhone, phone))
}

const setUserStatus = `UPDATE users SET status = $2 WHERE id = $1`

func (q *Queries) SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) (int64, error) {
	tag, err := q.db.Exec(ctx, setUserStatus, id, string(status))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listUserBanks = `SELECT bank_code FROM user_banks WHERE user_id = $1 ORDER BY bank_code`

func (q *Queries) ListUserBanks(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.Query(ctx, listUserBanks, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

const deleteUserBanks = `DELETE FROM user_banks WHERE user_id = $1`

func (q *Queries) DeleteUserBanks(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, deleteUserBanks, userID)
	return err
}

const insertUserBanks = `
INSERT INTO user_banks (user_id, bank_code)
SELECT $1, unnest($2::text[])
ON CONFLICT DO NOTHING`

func (q *Queries) InsertUserBanks(ctx context.Context, userID int64, codes []string) error {
	_, err := q.db.Exec(ctx, insertUserBanks, userID, codes)
	return err
}

// A failure that reaches threshold also blocks the user.
const recordFailedLogin = `
UPDATE users
SET failed_login_attempts = failed_login_attempts + 1,
    status = CASE WHEN failed_login_attempts + 1 >= $2 THEN 'BLOCKED' ELSE status END
WHERE id = $1
RETURNING ` + userColumns

func (q *Queries) RecordFailedLogin(ctx context.Context, id int64, threshold int32) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, recordFailedLogin, id, threshold))
}

const resetFailedLogins = `UPDATE users SET failed_login_attempts = 0 WHERE id = $1 AND failed_login_attempts <> 0`

func (q *Queries) ResetFailedLogins(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, resetFailedLogins, id)
	return err
}
