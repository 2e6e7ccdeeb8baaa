package domain

import "time"

type TxType string

const (
	TxTypeTopUp    TxType = "TOPUP"
	TxTypeTransfer TxType = "TRANSFER"
	TxTypePayment  TxType = "PAYMENT"
)

// TxStatus only has COMPLETED: a failed operation never writes a record.
type TxStatus string

const TxStatusCompleted TxStatus = "COMPLETED"

// Subkind is decided when the record is written and drives both daily-limit
// accounting and reporting. Descriptions are never parsed back.
type Subkind string

const (
	SubkindInternalTransfer Subkind = "internal_transfer"
	SubkindP2PTransfer      Subkind = "p2p_transfer"
	SubkindExternalTransfer Subkind = "external_transfer"
	SubkindExchange         Subkind = "exchange"
	SubkindMobilePayment    Subkind = "mobile_payment"
	SubkindVendorPayment    Subkind = "vendor_payment"
	SubkindTopUpSelf        Subkind = "topup_self"
	SubkindTopUpHelper      Subkind = "topup_helper"
	SubkindTopUpGift        Subkind = "topup_gift"
	SubkindAdminCredit      Subkind = "admin_credit"
)

// Type returns the coarse transaction type for the subkind.
func (s Subkind) Type() TxType {
	switch s {
	case SubkindInternalTransfer, SubkindP2PTransfer, SubkindExternalTransfer, SubkindExchange:
		return TxTypeTransfer
	case SubkindMobilePayment, SubkindVendorPayment:
		return TxTypePayment
	case SubkindTopUpSelf, SubkindTopUpHelper, SubkindTopUpGift, SubkindAdminCredit:
		return TxTypeTopUp
	}
	return ""
}

// CountsTowardDailyLimit reports whether the principal consumes the
// initiator's daily transfer limit. Moves between own accounts, top-ups and
// payments do not.
func (s Subkind) CountsTowardDailyLimit() bool {
	switch s {
	case SubkindP2PTransfer, SubkindExternalTransfer, SubkindExchange:
		return true
	}
	return false
}

// LimitSubkinds lists every subkind that consumes the daily limit.
func LimitSubkinds() []Subkind {
	return []Subkind{SubkindP2PTransfer, SubkindExternalTransfer, SubkindExchange}
}

// Transaction is an immutable ledger record. Amount is the principal in
// Currency; Credited is what the target account received in CreditCurrency
// (zero when there is no target).
type Transaction struct {
	ID             int64
	FromAccountID  *int64
	ToAccountID    *int64
	Type           TxType
	Subkind        Subkind
	Amount         Amount
	Fee            Amount
	Currency       Currency
	Credited       Amount
	CreditCurrency Currency
	Status         TxStatus
	InitiatedBy    int64
	Description    string
	CreatedAt      time.Time
}

// Total is what left the source account.
func (t Transaction) Total() Amount {
	return t.Amount + t.Fee
}
