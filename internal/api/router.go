// Package api exposes the commission engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brokerage/commission/internal/agents"
	"github.com/brokerage/commission/internal/approval"
	"github.com/brokerage/commission/internal/metrics"
	"github.com/brokerage/commission/internal/repository"
)

type Deps struct {
	Agents    *agents.Service
	Approvals *approval.Service
	Store     *repository.Store
	Log       *slog.Logger
	// Limiter throttles mutating routes per client IP. Nil disables it.
	Limiter *RateLimiter
	// DashboardTTL caches the dashboard between writes. Zero disables it.
	DashboardTTL time.Duration
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// TrustProxy takes client IPs from X-Forwarded-For/X-Real-IP.
	TrustProxy bool
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		agents:    d.Agents,
		approvals: d.Approvals,
		store:     d.Store,
		log:       d.Log,
	}
	if d.DashboardTTL > 0 {
		h.dashCache = cache.New(d.DashboardTTL, 2*d.DashboardTTL)
	}

	throttle := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		throttle = RateLimitMiddleware(d.Limiter)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-Id"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/tiers", h.ListTiers)
		r.Get("/dashboard", h.GetDashboard)

		// Agents.
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Get("/agents/{id}/upline", h.GetUpline)
		r.Get("/agents/{id}/downline", h.GetDownline)
		r.Get("/agents/{id}/ledger", h.GetAgentLedger)

		// Transactions.
		r.Get("/transactions", h.ListTransactions)
		r.Get("/transactions/{id}", h.GetTransaction)
		r.Get("/transactions/{id}/preview", h.PreviewTransaction)
		r.Get("/transactions/{id}/ledger", h.GetTransactionLedger)
		r.Get("/transactions/{id}/events", h.GetTransactionEvents)

		r.Group(func(r chi.Router) {
			r.Use(throttle)
			r.Use(h.invalidateDashboard)

			r.Post("/agents", h.CreateAgent)
			r.Post("/agents/import", h.ImportRoster)
			r.Post("/agents/{id}/promotion", h.EvaluatePromotion)

			r.Post("/transactions", h.CreateTransaction)
			r.Post("/transactions/{id}/submit", h.SubmitTransaction)
			r.Post("/transactions/{id}/review", h.ReviewTransaction)
			r.Post("/transactions/{id}/approve", h.ApproveTransaction)
			r.Post("/transactions/{id}/reject", h.RejectTransaction)
			r.Post("/transactions/{id}/complete", h.CompleteTransaction)
		})
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
