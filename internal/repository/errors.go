package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// mapError turns driver errors into domain errors. Anything it does not
// recognise is returned unchanged.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.Message)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "accounts_account_number_key":
			return domain.ErrAccountNumberTaken
		case "users_login_key":
			return domain.ErrLoginTaken
		case "users_phone_key":
			return domain.ErrPhoneTaken
		}
	case pgCheckViolation:
		if pgErr.ConstraintName == "accounts_balance_check" {
			return domain.ErrInsufficientFunds
		}
	}
	return err
}
