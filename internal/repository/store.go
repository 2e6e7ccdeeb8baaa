package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres ledger store.
type Store struct {
	db          *pgxpool.Pool
	queries     *Queries
	lockTimeout time.Duration
}

// NewStore creates a store wrapper around a pgx connection pool. A positive
// lockTimeout bounds every row or advisory lock wait inside RunInTx.
func NewStore(db *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{
		db:          db,
		queries:     New(db),
		lockTimeout: lockTimeout,
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

func (s *Store) Reader() ledger.Reader {
	return &reader{q: s.queries}
}

// RunInTx executes fn within a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err, nil))
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	q := s.queries.WithTx(tx)
	if err := fn(&pgTx{reader: reader{q: q}, locked: make(map[int64]bool)}); err != nil {
		return mapError(err, nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err, nil))
	}
	return nil
}

// Users is the Postgres user directory.
type Users struct {
	db      *pgxpool.Pool
	queries *Queries
}

func NewUsers(db *pgxpool.Pool) *Users {
	return &Users{db: db, queries: New(db)}
}

func (u *Users) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.Role == "" {
		user.Role = domain.RoleClient
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	created, err := u.queries.CreateUser(ctx, CreateUserParams{
		Login:        user.Login,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Status:       user.Status,
		Phone:        user.Phone,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", mapError(err, nil))
	}
	return created, nil
}

func (u *Users) GetUser(ctx context.Context, id int64) (domain.User, error) {
	user, err := u.queries.GetUser(ctx, id)
	return user, mapError(err, domain.ErrUserNotFound)
}

func (u *Users) GetUserByLogin(ctx context.Context, login string) (domain.User, error) {
	user, err := u.queries.GetUserByLogin(ctx, login)
	return user, mapError(err, domain.ErrUserNotFound)
}

func (u *Users) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	user, err := u.queries.GetUserByPhone(ctx, phone)
	return user, mapError(err, domain.ErrUserNotFound)
}

func (u *Users) SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) error {
	n, err := u.queries.SetUserStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (u *Users) ListUserBanks(ctx context.Context, userID int64) ([]string, error) {
	if _, err := u.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	codes, err := u.queries.ListUserBanks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user banks: %w", err)
	}
	return codes, nil
}

// SetUserBanks replaces the user's external bank links.
func (u *Users) SetUserBanks(ctx context.Context, userID int64, codes []string) error {
	if _, err := u.GetUser(ctx, userID); err != nil {
		return err
	}
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := u.queries.WithTx(tx)
	if err := q.DeleteUserBanks(ctx, userID); err != nil {
		return fmt.Errorf("clear user banks: %w", err)
	}
	if len(codes) > 0 {
		if err := q.InsertUserBanks(ctx, userID, codes); err != nil {
			return fmt.Errorf("insert user banks: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecordFailedLogin counts a failed password check and blocks the user once
// threshold consecutive failures are reached. A threshold <= 0 never blocks.
func (u *Users) RecordFailedLogin(ctx context.Context, id int64, threshold int) (domain.User, error) {
	if threshold <= 0 {
		threshold = math.MaxInt32
	}
	user, err := u.queries.RecordFailedLogin(ctx, id, int32(min(threshold, math.MaxInt32)))
	if err != nil {
		return domain.User{}, fmt.Errorf("record failed login: %w", mapError(err, domain.ErrUserNotFound))
	}
	return user, nil
}

func (u *Users) ResetFailedLogins(ctx context.Context, id int64) error {
	if err := u.queries.ResetFailedLogins(ctx, id); err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}
	return nil
}
