package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/brokerage/commission/internal/domain"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "commission_build_info",
			Help: "Build information of the commission service",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commission_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_approvals_total",
			Help: "Total number of approval attempts by outcome",
		},
		[]string{"outcome"}, // "approved", "duplicate", "data_integrity", "rejected_input", "error"
	)

	ApprovalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "commission_approval_duration_seconds",
			Help:    "Duration of the approve unit of work in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_status_transitions_total",
			Help: "Total number of transaction status transitions",
		},
		[]string{"to"},
	)

	PayoutAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_payout_amount_total",
			Help: "Sum of ledger amounts written, by role",
		},
		[]string{"role"},
	)

	BonusEntriesPerApproval = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "commission_bonus_entries_per_approval",
			Help:    "Number of leadership bonus entries per approved transaction",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10},
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordApproval records the outcome and duration of one approval attempt.
func RecordApproval(outcome string, duration time.Duration) {
	ApprovalsTotal.WithLabelValues(outcome).Inc()
	ApprovalDuration.Observe(duration.Seconds())
}

func RecordTransition(to domain.TransactionStatus) {
	TransitionsTotal.WithLabelValues(string(to)).Inc()
}

// RecordPayout adds newly written ledger entries to the payout counters.
func RecordPayout(entries []domain.LedgerEntry) {
	bonuses := 0
	for _, e := range entries {
		PayoutAmountTotal.WithLabelValues(string(e.Role)).Add(toFloat(e.Amount))
		if e.Role == domain.RoleLeadershipBonus {
			bonuses++
		}
	}
	BonusEntriesPerApproval.Observe(float64(bonuses))
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
