package domain

import (
	"strings"
	"time"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// ParseAccountType accepts DEBIT as a legacy alias for CHECKING.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CHECKING", "DEBIT":
		return AccountTypeChecking, nil
	case "SAVINGS":
		return AccountTypeSavings, nil
	}
	return "", ErrInvalidAccountType
}

// AccountNumberLength is the fixed length of every account number.
const AccountNumberLength = 16

type Account struct {
	ID        int64
	Number    string
	UserID    int64
	Type      AccountType
	Currency  Currency
	Balance   Amount
	Active    bool
	Primary   bool
	CreatedAt time.Time
}

// ValidAccountNumber reports whether s has the account number shape.
func ValidAccountNumber(s string) bool {
	if len(s) != AccountNumberLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MaskAccountNumber keeps only the last four digits: ••••1234.
func MaskAccountNumber(number string) string {
	if len(number) < 4 {
		return "••••"
	}
	return "••••" + number[len(number)-4:]
}
