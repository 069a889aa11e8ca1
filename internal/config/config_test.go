package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "solo", cfg.Mode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint64(4294967296), cfg.Sieve.SieveMax)
	assert.Equal(t, uint32(40), cfg.Sieve.PrimorialNumber)
	assert.Equal(t, 0, cfg.Miner.Threads)
	assert.Equal(t, uint8(6), cfg.Miner.TuplesRequired)
	assert.Equal(t, 2*time.Minute, cfg.Miner.DedupTTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	content := `
mode: pool
sieve:
  sieve_max: 1000000
  primorial_number: 10
miner:
  threads: 8
  tuples_required: 4
  rpc_url: "http://127.0.0.1:8332"
  rpc_user: "solo"
  rpc_password: "secret"
metrics:
  enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "pool", cfg.Mode)
	assert.Equal(t, uint64(1000000), cfg.Sieve.SieveMax)
	assert.Equal(t, uint32(10), cfg.Sieve.PrimorialNumber)
	assert.Equal(t, 8, cfg.Miner.Threads)
	assert.Equal(t, uint8(4), cfg.Miner.TuplesRequired)
	assert.Equal(t, "http://127.0.0.1:8332", cfg.Miner.RPCURL)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("miner:\n  threads: 2\n"), 0644))

	t.Setenv("SEXTSIEVE_MINER_THREADS", "16")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Miner.Threads)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "gpu" }},
		{"primorial number too small", func(c *Config) { c.Sieve.PrimorialNumber = 3 }},
		{"negative threads", func(c *Config) { c.Miner.Threads = -1 }},
		{"tuples required zero", func(c *Config) { c.Miner.TuplesRequired = 0 }},
		{"tuples required too large", func(c *Config) { c.Miner.TuplesRequired = 7 }},
		{"metrics enabled without listen addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}},
		{"metrics listen addr unparseable", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = "not-a-host-port"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Mode: "solo",
				Sieve: SieveConfig{
					PrimorialNumber: 40,
				},
				Miner: MinerConfig{
					TuplesRequired: 6,
				},
				Metrics: MetricsConfig{
					Enabled:    true,
					ListenAddr: ":9090",
				},
			}
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Mode: "solo",
		Sieve: SieveConfig{
			PrimorialNumber: 40,
		},
		Miner: MinerConfig{
			TuplesRequired: 6,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
	assert.NoError(t, validate(cfg))
}
