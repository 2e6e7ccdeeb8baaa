package handler

import (
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/service"
)

type AdminHandler struct {
	auth *service.AuthService
}

func NewAdminHandler(auth *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: auth}
}

type userBanksBody struct {
	Banks []string `json:"banks"`
}

func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AdminHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	admin, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.auth.SetBlocked(r.Context(), admin, id, blocked); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Banks(w http.ResponseWriter, r *http.Request) {
	admin, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	codes, err := h.auth.UserBanks(r.Context(), admin, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, userBanksBody{Banks: codes})
}

func (h *AdminHandler) SetBanks(w http.ResponseWriter, r *http.Request) {
	admin, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req userBanksBody
	if !decodeJSON(w, r, &req) {
		return
	}
	codes, err := h.auth.SetUserBanks(r.Context(), admin, id, req.Banks)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, userBanksBody{Banks: codes})
}
