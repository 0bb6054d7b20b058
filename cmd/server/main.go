package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/brokerage/commission/internal/agents"
	"github.com/brokerage/commission/internal/api"
	"github.com/brokerage/commission/internal/approval"
	"github.com/brokerage/commission/internal/config"
	"github.com/brokerage/commission/internal/logger"
	"github.com/brokerage/commission/internal/metrics"
	"github.com/brokerage/commission/internal/repository"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Verbose)
	slog.SetDefault(log)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing database", "path", cfg.DBPath)
	db, err := repository.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	store := repository.NewStore(db)
	clock := clockwork.NewRealClock()
	agentSvc := agents.NewService(store, log, clock, cfg.MaxChainDepth)
	approvalSvc := approval.NewService(store, log, clock, approval.Config{
		ApprovalTimeout: cfg.ApprovalTimeout,
		MaxChainDepth:   cfg.MaxChainDepth,
	})

	if err := seedAgents(ctx, log, store, agentSvc, cfg.SeedPath); err != nil {
		log.Warn("failed to seed agents", "path", cfg.SeedPath, "error", err)
	}

	var limiter *api.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = api.NewRateLimiter(ctx, cfg.RateLimitPerMinute)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.Deps{
			Agents:       agentSvc,
			Approvals:    approvalSvc,
			Store:        store,
			Log:          log,
			Limiter:      limiter,
			DashboardTTL: cfg.DashboardCacheTTL,
			CORSOrigins:  cfg.CORSOrigins,
			TrustProxy:   cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			"addr", "http://localhost:"+cfg.Port,
			"api", "http://localhost:"+cfg.Port+"/api/v1",
			"version", version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// seedAgents imports the roster at path when the database has no agents.
func seedAgents(ctx context.Context, log *slog.Logger, store *repository.Store, svc *agents.Service, path string) error {
	if path == "" {
		return nil
	}
	count, err := store.Agents.Count(ctx)
	if err != nil {
		return fmt.Errorf("count agents: %w", err)
	}
	if count > 0 {
		log.Info("database already has agents, skipping seed", "agents", count)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	res, err := svc.ImportRoster(ctx, data, agents.FormatJSON)
	if err != nil {
		return fmt.Errorf("import seed: %w", err)
	}
	log.Info("seeded agents", "path", path, "agents", res.RecordsImported)
	return nil
}
