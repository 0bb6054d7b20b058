package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/approval"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/repository"
)

type createTransactionRequest struct {
	AgentID          string          `json:"agent_id" validate:"required"`
	PropertyAddress  string          `json:"property_address"`
	ClientName       string          `json:"client_name"`
	MarketType       string          `json:"market_type" validate:"omitempty,oneof=primary secondary"`
	TransactionType  string          `json:"transaction_type" validate:"omitempty,oneof=sale lease"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CommissionType   string          `json:"commission_type" validate:"omitempty,oneof=percentage fixed"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.approvals.Create(r.Context(), approval.NewTransaction{
		AgentID:          req.AgentID,
		PropertyAddress:  req.PropertyAddress,
		ClientName:       req.ClientName,
		MarketType:       domain.MarketType(req.MarketType),
		TransactionType:  domain.TransactionType(req.TransactionType),
		CommissionAmount: req.CommissionAmount,
		CommissionType:   domain.CommissionType(req.CommissionType),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions doubles as the approval queue: ?status=under_review
// returns work oldest first.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Status:  q.Get("status"),
		AgentID: q.Get("agent_id"),
		From:    parseTime(q.Get("from")),
		To:      parseTime(q.Get("to")),
		Page:    parseIntDefault(q.Get("page"), 1),
		Limit:   parseIntDefault(q.Get("limit"), 50),
	}

	txns, total, err := h.approvals.Queue(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": nonNil(txns),
		"total":        total,
		"page":         filter.Page,
		"limit":        filter.Limit,
	})
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.approvals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handlers) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := h.approvals.Submit(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handlers) ReviewTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := h.approvals.StartReview(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// ApproveTransaction answers 201 when the ledger was written and 200 when
// the transaction had already been approved.
func (h *Handlers) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.approvals.ApproveTransaction(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyProcessed {
		status = http.StatusOK
	}
	h.writeJSON(w, status, res)
}

func (h *Handlers) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.approvals.Reject(r.Context(), chi.URLParam(r, "id"), actor, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handlers) CompleteTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	tx, err := h.approvals.Complete(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handlers) PreviewTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := h.approvals.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetTransactionLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := h.approvals.Ledger(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"entries":        nonNil(entries),
		"total_paid":     domain.SumLedger(entries, ""),
	})
}

func (h *Handlers) GetTransactionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.approvals.Events(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": id,
		"events":         nonNil(events),
	})
}
