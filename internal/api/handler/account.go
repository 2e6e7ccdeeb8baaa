package handler

import (
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
)

type AccountHandler struct {
	accounts  *service.AccountService
	transfers *service.TransferService
}

func NewAccountHandler(accounts *service.AccountService, transfers *service.TransferService) *AccountHandler {
	return &AccountHandler{accounts: accounts, transfers: transfers}
}

type openAccountRequest struct {
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
}

type topUpRequest struct {
	Amount  domain.Amount `json:"amount"`
	OTPCode string        `json:"otp_code"`
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	accounts, err := h.accounts.List(r.Context(), actor)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewAccounts(accounts))
}

func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req openAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	typ, err := domain.ParseAccountType(req.AccountType)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	account, err := h.accounts.Open(r.Context(), actor, typ, currency)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewAccount(account))
}

func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.Close(r.Context(), actor, id); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := h.accounts.SetPrimary(r.Context(), actor, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewAccount(account))
}

// TopUp credits the caller's own account and returns the recorded transaction.
func (h *AccountHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req topUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.transfers.TopUp(r.Context(), service.TopUp{
		Actor:     actor,
		AccountID: id,
		Amount:    req.Amount,
		OTP:       req.OTPCode,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewTransaction(tx))
}
