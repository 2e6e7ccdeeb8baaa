package domain

import "errors"

// ErrorKind groups rejections by the taxonomy the callers act on.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindAuth            ErrorKind = "auth"
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindState           ErrorKind = "state"
	KindBusiness        ErrorKind = "business"
	KindConflict        ErrorKind = "conflict"
)

// Error is a user-actionable rejection. Code is stable and safe to show to
// the end user.
type Error struct {
	Code string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return e.Code
}

func newError(kind ErrorKind, code string) *Error {
	return &Error{Code: code, Kind: kind}
}

var (
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid_credentials")
	ErrInvalidToken       = newError(KindUnauthenticated, "invalid_token")

	ErrForbidden             = newError(KindAuth, "forbidden")
	ErrUserBlocked           = newError(KindAuth, "user_blocked")
	ErrSalaryCreditAdminOnly = newError(KindAuth, "salary_credit_admin_only")

	ErrInvalidAmount           = newError(KindValidation, "invalid_amount")
	ErrAmountNotPositive       = newError(KindValidation, "amount_must_be_positive")
	ErrAmountTooSmall          = newError(KindValidation, "transfer_amount_too_small")
	ErrAmountExceedsSingle     = newError(KindValidation, "transfer_amount_exceeds_single_limit")
	ErrAmountTooLarge          = newError(KindValidation, "amount_too_large")
	ErrSameAccount             = newError(KindValidation, "transfer_same_account")
	ErrCurrencyMismatch        = newError(KindValidation, "currency_mismatch")
	ErrCurrencyNotSupported    = newError(KindValidation, "currency_not_supported_for_exchange")
	ErrInvalidAccountType      = newError(KindValidation, "invalid_account_type")
	ErrInvalidTopUpPurpose     = newError(KindValidation, "invalid_topup_purpose")
	ErrInvalidAccountNumber    = newError(KindValidation, "invalid_account_number")
	ErrInvalidPhone            = newError(KindValidation, "invalid_phone_number")
	ErrUnknownBank             = newError(KindValidation, "unknown_bank")
	ErrOperatorNotSupported    = newError(KindValidation, "payment_operator_not_supported")
	ErrProviderNotSupported    = newError(KindValidation, "payment_provider_not_supported")
	ErrPaymentAccountLength    = newError(KindValidation, "payment_account_number_invalid_length")
	ErrPaymentAmountOutOfRange = newError(KindValidation, "payment_amount_out_of_range")
	ErrInvalidLogin            = newError(KindValidation, "invalid_login")
	ErrWeakPassword            = newError(KindValidation, "weak_password")
	ErrPasswordEqualsLogin     = newError(KindValidation, "password_equals_login")
	ErrPasswordContainsSpace   = newError(KindValidation, "password_contains_space")
	ErrInvalidPagination       = newError(KindValidation, "invalid_pagination")

	ErrAccountNotFound     = newError(KindNotFound, "account_not_found")
	ErrTransactionNotFound = newError(KindNotFound, "transaction_not_found")
	ErrUserNotFound        = newError(KindNotFound, "user_not_found")
	ErrRecipientNotFound   = newError(KindNotFound, "recipient_not_found_in_our_bank")

	ErrAccountInactive          = newError(KindState, "account_inactive")
	ErrTransferFromSavings      = newError(KindState, "transfer_not_allowed_from_savings")
	ErrAccountAlreadyClosed     = newError(KindState, "account_already_closed")
	ErrCloseRequiresZeroBalance = newError(KindState, "account_close_requires_zero_balance")
	ErrAccountLimitExceeded     = newError(KindState, "account_limit_exceeded")
	ErrPaymentRequiresRUB       = newError(KindState, "payment_requires_rub_account")

	ErrInvalidOTP                 = newError(KindBusiness, "invalid_otp_code")
	ErrInsufficientFunds          = newError(KindBusiness, "insufficient_funds")
	ErrDailyLimitExceeded         = newError(KindBusiness, "transfer_amount_exceeds_daily_limit")
	ErrNoSuitableRecipientAccount = newError(KindBusiness, "recipient_has_no_suitable_account")
	ErrAccountFoundInBank         = newError(KindBusiness, "account_found_in_bank")

	ErrConcurrencyConflict = newError(KindConflict, "concurrency_conflict")
	ErrAccountNumberTaken  = newError(KindConflict, "account_number_taken")
	ErrLoginTaken          = newError(KindConflict, "login_taken")
	ErrPhoneTaken          = newError(KindConflict, "phone_taken")
)

// AsError extracts the typed rejection from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsRetryable reports whether the caller may re-run the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
