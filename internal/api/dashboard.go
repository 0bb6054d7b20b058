package api

import (
	"net/http"
	"strconv"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/approval"
	"github.com/brokerage/commission/internal/domain"
)

const dashboardCacheKey = "dashboard"

// dashboardKey is the cache key for the current write generation. A read
// that started before a write stores under a key no later read uses.
func (h *Handlers) dashboardKey() string {
	return dashboardCacheKey + ":" + strconv.FormatUint(h.dashGen.Load(), 10)
}

type dashboardTransactions struct {
	Total          int                              `json:"total"`
	ByStatus       map[domain.TransactionStatus]int `json:"by_status"`
	AwaitingReview int                              `json:"awaiting_review"`
}

type dashboardPayouts struct {
	OwnCommission   decimal.Decimal `json:"own_commission"`
	LeadershipBonus decimal.Decimal `json:"leadership_bonus"`
	Total           decimal.Decimal `json:"total"`
}

type dashboard struct {
	Agents       int                   `json:"agents"`
	Transactions dashboardTransactions `json:"transactions"`
	Payouts      dashboardPayouts      `json:"payouts"`
}

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	key := h.dashboardKey()
	if h.dashCache != nil {
		if cached, ok := h.dashCache.Get(key); ok {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx := r.Context()
	agentCount, err := h.store.Agents.Count(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	statusCounts, err := h.store.Transactions.StatusCounts(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	totals, err := h.store.Ledger.Totals(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	d := dashboard{
		Agents: agentCount,
		Transactions: dashboardTransactions{
			ByStatus:       make(map[domain.TransactionStatus]int),
			AwaitingReview: statusCounts[domain.StatusSubmitted] + statusCounts[domain.StatusUnderReview],
		},
		Payouts: dashboardPayouts{
			OwnCommission:   totals[domain.RoleOwnCommission],
			LeadershipBonus: totals[domain.RoleLeadershipBonus],
		},
	}
	for _, s := range approval.Statuses() {
		d.Transactions.ByStatus[s] = statusCounts[s]
		d.Transactions.Total += statusCounts[s]
	}
	d.Payouts.Total = d.Payouts.OwnCommission.Add(d.Payouts.LeadershipBonus)

	if h.dashCache != nil {
		h.dashCache.Set(key, d, cache.DefaultExpiration)
	}
	h.writeJSON(w, http.StatusOK, d)
}

// invalidateDashboard moves the dashboard to a new cache generation around
// every write request.
func (h *Handlers) invalidateDashboard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.dashGen.Add(1)
		next.ServeHTTP(w, r)
		h.dashGen.Add(1)
	})
}
