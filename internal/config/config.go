// Package config loads server settings from defaults, an optional .env
// file, the process environment and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Port               string
	DBPath             string
	ApprovalTimeout    time.Duration
	MaxChainDepth      int
	RateLimitPerMinute int // 0 disables rate limiting
	SeedPath           string
	ShutdownTimeout    time.Duration
	DashboardCacheTTL  time.Duration // 0 disables caching
	CORSOrigins        []string
	// TrustProxy takes the client IP from X-Forwarded-For/X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy bool
	Verbose    bool
}

func Default() Config {
	return Config{
		Port:               "8080",
		DBPath:             "commission.db",
		ApprovalTimeout:    5 * time.Second,
		MaxChainDepth:      10,
		RateLimitPerMinute: 120,
		SeedPath:           "testdata/seed.json",
		ShutdownTimeout:    10 * time.Second,
		DashboardCacheTTL:  5 * time.Second,
	}
}

// Load builds a Config. lookup reads the process environment; pass
// os.LookupEnv outside of tests. Values from the env file only fill keys
// the environment leaves unset, and flags given explicitly in args win
// over both.
func Load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	flags := flag.NewFlagSet("commission-server", flag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "optional dotenv file with environment defaults")
	port := flags.String("port", cfg.Port, "HTTP listen port (or set PORT env var)")
	dbPath := flags.String("db-path", cfg.DBPath, "SQLite database path (or set DB_PATH env var)")
	approvalTimeout := flags.Duration("approval-timeout", cfg.ApprovalTimeout, "upper bound on one approval (or set APPROVAL_TIMEOUT env var)")
	maxChainDepth := flags.Int("max-chain-depth", cfg.MaxChainDepth, "maximum upline hops paid a leadership bonus (or set MAX_CHAIN_DEPTH env var)")
	rateLimit := flags.Int("rate-limit", cfg.RateLimitPerMinute, "mutating requests per minute per client IP, 0 to disable (or set RATE_LIMIT_PER_MINUTE env var)")
	seedPath := flags.String("seed-path", cfg.SeedPath, "agent seed file loaded into an empty database (or set SEED_PATH env var)")
	shutdownTimeout := flags.Duration("shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout (or set SHUTDOWN_TIMEOUT env var)")
	dashboardTTL := flags.Duration("dashboard-cache-ttl", cfg.DashboardCacheTTL, "dashboard cache lifetime, 0 to disable (or set DASHBOARD_CACHE_TTL env var)")
	corsOrigins := flags.StringSlice("cors-origins", nil, "allowed CORS origins, comma separated (or set CORS_ALLOWED_ORIGINS env var)")
	trustProxy := flags.Bool("trust-proxy", cfg.TrustProxy, "take client IPs from proxy headers (or set TRUST_PROXY=true env var)")
	verbose := flags.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging (or set VERBOSE=true env var)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	dotenv := map[string]string{}
	if *envFile != "" {
		m, err := godotenv.Read(*envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file %s: %w", *envFile, err)
		}
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}

	if err := applyEnv(&cfg, env); err != nil {
		return nil, err
	}

	if flags.Changed("port") {
		cfg.Port = *port
	}
	if flags.Changed("db-path") {
		cfg.DBPath = *dbPath
	}
	if flags.Changed("approval-timeout") {
		cfg.ApprovalTimeout = *approvalTimeout
	}
	if flags.Changed("max-chain-depth") {
		cfg.MaxChainDepth = *maxChainDepth
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimitPerMinute = *rateLimit
	}
	if flags.Changed("seed-path") {
		cfg.SeedPath = *seedPath
	}
	if flags.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = *shutdownTimeout
	}
	if flags.Changed("dashboard-cache-ttl") {
		cfg.DashboardCacheTTL = *dashboardTTL
	}
	if flags.Changed("cors-origins") {
		cfg.CORSOrigins = *corsOrigins
	}
	if flags.Changed("trust-proxy") {
		cfg.TrustProxy = *trustProxy
	}
	if flags.Changed("verbose") {
		cfg.Verbose = *verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	if v, ok := env("PORT"); ok {
		cfg.Port = v
	}
	if v, ok := env("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := env("SEED_PATH"); ok {
		cfg.SeedPath = v
	}
	if v, ok := env("APPROVAL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("APPROVAL_TIMEOUT: %w", err)
		}
		cfg.ApprovalTimeout = d
	}
	if v, ok := env("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v, ok := env("DASHBOARD_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DASHBOARD_CACHE_TTL: %w", err)
		}
		cfg.DashboardCacheTTL = d
	}
	if v, ok := env("CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := env("MAX_CHAIN_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_CHAIN_DEPTH: %w", err)
		}
		cfg.MaxChainDepth = n
	}
	if v, ok := env("RATE_LIMIT_PER_MINUTE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = n
	}
	if v, ok := env("TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRUST_PROXY: %w", err)
		}
		cfg.TrustProxy = b
	}
	if v, ok := env("VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VERBOSE: %w", err)
		}
		cfg.Verbose = b
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.ApprovalTimeout <= 0 {
		return fmt.Errorf("approval timeout must be positive, got %s", c.ApprovalTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if c.MaxChainDepth <= 0 {
		return fmt.Errorf("max chain depth must be positive, got %d", c.MaxChainDepth)
	}
	if c.DashboardCacheTTL < 0 {
		return fmt.Errorf("dashboard cache ttl must not be negative, got %s", c.DashboardCacheTTL)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimitPerMinute)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
