package domain

import "time"

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	Phone        string
	CreatedAt    time.Time
}

// Actor is the authenticated caller as seen by the engine.
type Actor struct {
	UserID  int64
	Role    Role
	Blocked bool
}

func ActorFromUser(u User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, Blocked: u.Status == UserStatusBlocked}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CheckActive rejects blocked actors before any mutation.
func (a Actor) CheckActive() error {
	if a.Blocked {
		return ErrUserBlocked
	}
	return nil
}

func (a Actor) Owns(acc Account) bool {
	return acc.UserID == a.UserID
}

// TopUpReason tells why money enters an account from outside the ledger.
type TopUpReason string

const (
	TopUpSelf   TopUpReason = "self"
	TopUpHelper TopUpReason = ""
	TopUpGift   TopUpReason = "gift"
	TopUpSalary TopUpReason = "salary"
)

func ParseTopUpReason(s string) (TopUpReason, error) {
	switch r := TopUpReason(s); r {
	case TopUpHelper, TopUpGift, TopUpSalary:
		return r, nil
	}
	return "", ErrInvalidTopUpPurpose
}

func (r TopUpReason) Subkind() Subkind {
	switch r {
	case TopUpSelf:
		return SubkindTopUpSelf
	case TopUpGift:
		return SubkindTopUpGift
	case TopUpSalary:
		return SubkindAdminCredit
	}
	return SubkindTopUpHelper
}

// CanCredit decides whether the actor may put money into acc for reason.
// Salary is payroll and belongs to admins; anyone else credits only their
// own accounts. Foreign accounts are reported as not found.
func (a Actor) CanCredit(acc Account, reason TopUpReason) error {
	if reason == TopUpSalary && !a.IsAdmin() {
		return ErrSalaryCreditAdminOnly
	}
	if a.IsAdmin() && reason != TopUpSelf {
		return nil
	}
	if !a.Owns(acc) {
		return ErrAccountNotFound
	}
	return nil
}
