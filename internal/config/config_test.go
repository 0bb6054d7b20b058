package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnvFile(t *testing.T) []string {
	return []string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t), envMap(map[string]string{
		"PORT":                  "9090",
		"DB_PATH":               "/tmp/c.db",
		"APPROVAL_TIMEOUT":      "750ms",
		"MAX_CHAIN_DEPTH":       "4",
		"RATE_LIMIT_PER_MINUTE": "0",
		"VERBOSE":               "true",
		"CORS_ALLOWED_ORIGINS":  "https://a.example, https://b.example,",
		"DASHBOARD_CACHE_TTL":   "0s",
		"TRUST_PROXY":           "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/c.db", cfg.DBPath)
	assert.Equal(t, 750*time.Millisecond, cfg.ApprovalTimeout)
	assert.Equal(t, 4, cfg.MaxChainDepth)
	assert.Equal(t, 0, cfg.RateLimitPerMinute)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.DashboardCacheTTL)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	args := append(noEnvFile(t), "--port", "7000", "--max-chain-depth=3")
	cfg, err := Load(args, envMap(map[string]string{"PORT": "9090", "MAX_CHAIN_DEPTH": "8"}))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 3, cfg.MaxChainDepth)
}

func TestLoad_EnvFileFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=6000\nSEED_PATH=/data/seed.json\n"), 0o600))

	cfg, err := Load([]string{"--env-file", path}, envMap(map[string]string{"PORT": "9090"}))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/data/seed.json", cfg.SeedPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration":  {"APPROVAL_TIMEOUT": "soon"},
		"zero timeout":  {"APPROVAL_TIMEOUT": "0s"},
		"zero depth":    {"MAX_CHAIN_DEPTH": "0"},
		"negative rate": {"RATE_LIMIT_PER_MINUTE": "-1"},
		"bad bool":      {"VERBOSE": "loud"},
		"bad proxy":     {"TRUST_PROXY": "maybe"},
		"non-int depth": {"MAX_CHAIN_DEPTH": "ten"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(noEnvFile(t), envMap(env))
			assert.Error(t, err)
		})
	}
}
