package service

import (
	"context"

	"github.com/ayo6706/retail-ledger/internal/domain"
)

// UserStore is the user directory the services depend on. Both the Postgres
// and in-memory stores implement it.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.User, error)
	GetUserByPhone(ctx context.Context, phone string) (domain.User, error)
	SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) error
	ListUserBanks(ctx context.Context, userID int64) ([]string, error)
	SetUserBanks(ctx context.Context, userID int64, codes []string) error
	RecordFailedLogin(ctx context.Context, id int64, threshold int) (domain.User, error)
	ResetFailedLogins(ctx context.Context, id int64) error
}

// OTPVerifier accepts or rejects a one-time code for a user. A rejected code
// is reported as false with a nil error.
type OTPVerifier interface {
	Verify(ctx context.Context, userID int64, code string) (bool, error)
}

// EventSink is notified after a ledger transaction commits.
type EventSink interface {
	TransactionCompleted(ctx context.Context, tx domain.Transaction)
}

type noopSink struct{}

func (noopSink) TransactionCompleted(context.Context, domain.Transaction) {}
