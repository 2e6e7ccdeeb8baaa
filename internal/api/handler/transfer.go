package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type internalTransferRequest struct {
	FromAccountID int64         `json:"from_account_id"`
	ToAccountID   int64         `json:"to_account_id"`
	Amount        domain.Amount `json:"amount"`
	OTPCode       string        `json:"otp_code,omitempty"`
}

type accountNumberTransferRequest struct {
	FromAccountID int64         `json:"from_account_id"`
	AccountNumber string        `json:"account_number"`
	Amount        domain.Amount `json:"amount"`
	OTPCode       string        `json:"otp_code"`
}

type phoneTransferRequest struct {
	FromAccountID int64         `json:"from_account_id"`
	Phone         string        `json:"phone"`
	BankID        string        `json:"bank_id"`
	Amount        domain.Amount `json:"amount"`
	OTPCode       string        `json:"otp_code"`
}

// Internal moves money between the caller's own accounts, or to another
// user's account by id.
func (h *TransferHandler) Internal(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req internalTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.Internal(r.Context(), service.InternalTransfer{
		Actor:         actor,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		OTP:           req.OTPCode,
	})
	h.respondTransaction(w, r, tx, err)
}

func (h *TransferHandler) ByAccount(w http.ResponseWriter, r *http.Request) {
	h.accountNumberTransfer(w, r, h.svc.ByAccount)
}

func (h *TransferHandler) ExternalByAccount(w http.ResponseWriter, r *http.Request) {
	h.accountNumberTransfer(w, r, h.svc.ExternalByAccount)
}

func (h *TransferHandler) accountNumberTransfer(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, cmd service.AccountNumberTransfer) (domain.Transaction, error)) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req accountNumberTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := run(r.Context(), service.AccountNumberTransfer{
		Actor:         actor,
		FromAccountID: req.FromAccountID,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		OTP:           req.OTPCode,
	})
	h.respondTransaction(w, r, tx, err)
}

func (h *TransferHandler) CheckAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	check, err := h.svc.CheckAccountNumber(r.Context(), actor, r.URL.Query().Get("account_number"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.AccountCheck{Found: check.Found, Masked: check.Masked})
}

func (h *TransferHandler) CheckPhone(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	check, err := h.svc.CheckPhone(r.Context(), actor, r.URL.Query().Get("phone"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.PhoneCheck{InOurBank: check.InOurBank, AvailableBanks: check.Banks})
}

func (h *TransferHandler) ByPhone(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req phoneTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.ByPhone(r.Context(), service.PhoneTransfer{
		Actor:         actor,
		FromAccountID: req.FromAccountID,
		Phone:         req.Phone,
		BankID:        req.BankID,
		Amount:        req.Amount,
		OTP:           req.OTPCode,
	})
	h.respondTransaction(w, r, tx, err)
}

func (h *TransferHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req internalTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.Exchange(r.Context(), service.Exchange{
		Actor:         actor,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		OTP:           req.OTPCode,
	})
	h.respondTransaction(w, r, tx, err)
}

func (h *TransferHandler) DailyUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	usage, err := h.svc.DailyUsage(r.Context(), actor)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewDailyUsage(usage))
}

func (h *TransferHandler) Rates(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, models.NewRates(h.svc.Rates()))
}

func (h *TransferHandler) respondTransaction(w http.ResponseWriter, r *http.Request, tx domain.Transaction, err error) {
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewTransaction(tx))
}
