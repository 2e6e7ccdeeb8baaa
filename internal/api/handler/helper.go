package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
	"go.uber.org/zap"
)

// OTPIssuer hands out the caller's live one-time code.
type OTPIssuer interface {
	Issue(ctx context.Context, userID int64) (string, error)
}

// HelperHandler backs the demo helpers: a code preview in place of an SMS
// gateway, and crediting accounts from outside the ledger.
type HelperHandler struct {
	otp       OTPIssuer
	transfers *service.TransferService
}

func NewHelperHandler(otp OTPIssuer, transfers *service.TransferService) *HelperHandler {
	return &HelperHandler{otp: otp, transfers: transfers}
}

type increaseRequest struct {
	Amount  domain.Amount `json:"amount"`
	Purpose string        `json:"purpose,omitempty"`
}

func (h *HelperHandler) PreviewOTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	code, err := h.otp.Issue(r.Context(), actor.UserID)
	if err != nil {
		zap.L().Error("otp preview failed", zap.Error(err), zap.Int64("user_id", actor.UserID))
		RespondError(w, r, http.StatusServiceUnavailable, "otp/unavailable", "One-time codes are unavailable")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"otp_code": code})
}

func (h *HelperHandler) Increase(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req increaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reason, err := domain.ParseTopUpReason(req.Purpose)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	tx, err := h.transfers.Credit(r.Context(), service.Credit{
		Actor:     actor,
		AccountID: id,
		Amount:    req.Amount,
		Reason:    reason,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewTransaction(tx))
}
