package handler

import (
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/models"
	"github.com/ayo6706/retail-ledger/internal/service"
)

type TransactionHandler struct {
	svc *service.ReportService
}

func NewTransactionHandler(svc *service.ReportService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionPage struct {
	Items  []models.Transaction `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// List returns the caller's history. Query: from, to, limit, offset.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	q, err := historyQuery(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	txs, err := h.svc.List(r.Context(), actor, q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, transactionPage{Items: models.NewTransactions(txs), Limit: q.Limit, Offset: q.Offset})
}

func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	q, err := historyQuery(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	summary, err := h.svc.Summary(r.Context(), actor, q.From, q.To)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewSummary(summary))
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.NewTransaction(tx))
}

func historyQuery(r *http.Request) (service.HistoryQuery, error) {
	var (
		q   service.HistoryQuery
		err error
	)
	if q.From, err = queryTime(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryTime(r, "to"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		return q, err
	}
	return q, nil
}
