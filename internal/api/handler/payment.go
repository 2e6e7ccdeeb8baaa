package handler

import (
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/directory"
	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
)

type PaymentHandler struct {
	svc *service.TransferService
}

func NewPaymentHandler(svc *service.TransferService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type mobilePaymentRequest struct {
	FromAccountID int64         `json:"from_account_id"`
	Operator      string        `json:"operator"`
	Phone         string        `json:"phone"`
	Amount        domain.Amount `json:"amount"`
	OTPCode       string        `json:"otp_code"`
}

type vendorPaymentRequest struct {
	FromAccountID int64         `json:"from_account_id"`
	Provider      string        `json:"provider"`
	AccountNumber string        `json:"account_number"`
	Amount        domain.Amount `json:"amount"`
	OTPCode       string        `json:"otp_code"`
}

type operatorsResponse struct {
	Operators []string              `json:"operators"`
	Range     directory.AmountRange `json:"amount_range"`
}

type providersResponse struct {
	Providers []directory.Provider  `json:"providers"`
	Range     directory.AmountRange `json:"amount_range"`
}

func (h *PaymentHandler) Operators(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, operatorsResponse{Operators: directory.MobileOperators(), Range: directory.MobileRange})
}

func (h *PaymentHandler) Providers(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, providersResponse{Providers: directory.VendorProviders(), Range: directory.VendorRange})
}

func (h *PaymentHandler) Mobile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req mobilePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.PayMobile(r.Context(), service.MobilePayment{
		Actor:     actor,
		AccountID: req.FromAccountID,
		Operator:  req.Operator,
		Phone:     req.Phone,
		Amount:    req.Amount,
		OTP:       req.OTPCode,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewTransaction(tx))
}

func (h *PaymentHandler) Vendor(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req vendorPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.svc.PayVendor(r.Context(), service.VendorPayment{
		Actor:         actor,
		AccountID:     req.FromAccountID,
		Provider:      req.Provider,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		OTP:           req.OTPCode,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewTransaction(tx))
}
