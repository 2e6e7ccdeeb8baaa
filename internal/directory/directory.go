// Package directory holds the static catalogs the transfer engine routes
// against: partner banks, phone numbers and payment recipients.
package directory

import (
	"strings"

	"github.com/ayo6706/retail-ledger/internal/domain"
)

// OurBankCode identifies local routing in by-phone transfers.
const OurBankCode = "shlapabank"

type Bank struct {
	Code  string `json:"id"`
	Label string `json:"label"`
}

var banks = []Bank{
	{OurBankCode, "Shlapa Bank"},
	{"alpha", "Alfa-Bank"},
	{"tinkoff", "T-Bank"},
	{"sber", "Sberbank"},
	{"vtb", "VTB"},
	{"gazprombank", "Gazprombank"},
	{"raiffeisen", "Raiffeisenbank"},
	{"rosbank", "Rosbank"},
	{"otkritie", "Otkritie"},
	{"unicredit", "UniCredit Bank"},
	{"rshb", "Rosselkhozbank"},
	{"sovcombank", "Sovcombank"},
	{"promsvyaz", "Promsvyazbank"},
	{"mts", "MTS Bank"},
	{"post", "Pochta Bank"},
	{"uralsib", "Uralsib"},
}

// Banks returns the full catalog, our bank first.
func Banks() []Bank {
	return append([]Bank(nil), banks...)
}

// ExternalBanks returns every bank except ours.
func ExternalBanks() []Bank {
	return append([]Bank(nil), banks[1:]...)
}

func LookupBank(code string) (Bank, bool) {
	for _, b := range banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}

// ValidateExternalBanks rejects unknown codes and our own code.
func ValidateExternalBanks(codes []string) error {
	for _, c := range codes {
		if c == OurBankCode {
			return domain.ErrUnknownBank
		}
		if _, ok := LookupBank(c); !ok {
			return domain.ErrUnknownBank
		}
	}
	return nil
}

// NormalizePhone returns the number as +7XXXXXXXXXX. It accepts 11 digits
// starting with 7 or 8, or 10 bare digits, with any punctuation around them.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 11 && (digits[0] == '7' || digits[0] == '8'):
		return "+7" + digits[1:], nil
	case len(digits) == 10:
		return "+7" + digits, nil
	}
	return "", domain.ErrInvalidPhone
}
