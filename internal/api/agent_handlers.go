package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brokerage/commission/internal/agents"
	"github.com/brokerage/commission/internal/domain"
	"github.com/brokerage/commission/internal/repository"
	"github.com/brokerage/commission/internal/tier"
)

const maxRosterBytes = 32 << 20

type createAgentRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Tier        string `json:"tier"`
	RecruiterID string `json:"recruiter_id"`
}

type promotionRequest struct {
	MonthlySales *int `json:"monthly_sales" validate:"required,min=0"`
}

func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"tiers": tier.All()})
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	agent, err := h.agents.Create(r.Context(), agents.NewAgent{
		ID:          req.ID,
		Name:        req.Name,
		Email:       req.Email,
		Tier:        domain.AgentTier(req.Tier),
		RecruiterID: req.RecruiterID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, agent)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.AgentFilter{
		Tier:        q.Get("tier"),
		RecruiterID: q.Get("recruiter_id"),
		Page:        parseIntDefault(q.Get("page"), 1),
		Limit:       parseIntDefault(q.Get("limit"), 50),
	}

	list, total, err := h.agents.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"agents": nonNil(list),
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.agents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, agent)
}

func (h *Handlers) GetUpline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chain, err := h.agents.Upline(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "upline": nonNil(chain)})
}

func (h *Handlers) GetDownline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recruits, err := h.agents.Downline(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "downline": nonNil(recruits)})
}

// GetAgentLedger lists the payouts an agent has received, newest first.
func (h *Handlers) GetAgentLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.agents.Get(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := repository.LedgerFilter{
		RecipientAgentID: id,
		Role:             q.Get("role"),
		Page:             parseIntDefault(q.Get("page"), 1),
		Limit:            parseIntDefault(q.Get("limit"), 50),
	}
	entries, err := h.store.Ledger.ListByRecipient(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":    id,
		"entries":     nonNil(entries),
		"page_amount": domain.SumLedger(entries, ""),
		"page":        filter.Page,
		"limit":       filter.Limit,
	})
}

func (h *Handlers) EvaluatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.agents.EvaluatePromotion(r.Context(), chi.URLParam(r, "id"), *req.MonthlySales)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ImportRoster accepts either a multipart form with "format" and "file"
// fields or a raw body with ?format=csv|json.
func (h *Handlers) ImportRoster(w http.ResponseWriter, r *http.Request) {
	var data []byte
	format := r.URL.Query().Get("format")

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxRosterBytes); err != nil {
			h.writeError(w, http.StatusBadRequest, "validation", "invalid multipart form: "+err.Error())
			return
		}
		if f := r.FormValue("format"); f != "" {
			format = f
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation", "file field is required: "+err.Error())
			return
		}
		defer file.Close()

		data, err = io.ReadAll(io.LimitReader(file, maxRosterBytes))
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "internal", "read file: "+err.Error())
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(io.LimitReader(r.Body, maxRosterBytes))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation", "read body: "+err.Error())
			return
		}
	}

	if format == "" {
		h.writeError(w, http.StatusBadRequest, "validation", "format is required")
		return
	}

	res, err := h.agents.ImportRoster(r.Context(), data, format)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
