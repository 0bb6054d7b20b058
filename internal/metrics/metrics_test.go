package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brokerage/commission/internal/domain"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/things/{id}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/42", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/things/{id}", "418"))

	assert.Equal(t, before+1, after)
}

func TestRecordPayout(t *testing.T) {
	own := testutil.ToFloat64(PayoutAmountTotal.WithLabelValues(string(domain.RoleOwnCommission)))
	bonus := testutil.ToFloat64(PayoutAmountTotal.WithLabelValues(string(domain.RoleLeadershipBonus)))

	RecordPayout([]domain.LedgerEntry{
		{Role: domain.RoleOwnCommission, Amount: decimal.RequireFromString("100.50")},
		{Role: domain.RoleLeadershipBonus, Amount: decimal.RequireFromString("7.25")},
	})

	assert.InDelta(t, own+100.50, testutil.ToFloat64(PayoutAmountTotal.WithLabelValues(string(domain.RoleOwnCommission))), 1e-9)
	assert.InDelta(t, bonus+7.25, testutil.ToFloat64(PayoutAmountTotal.WithLabelValues(string(domain.RoleLeadershipBonus))), 1e-9)
}

func TestRecordApproval(t *testing.T) {
	before := testutil.ToFloat64(ApprovalsTotal.WithLabelValues("duplicate"))
	RecordApproval("duplicate", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ApprovalsTotal.WithLabelValues("duplicate")))
}
