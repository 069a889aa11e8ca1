package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rieriver/sextsieve/internal/utils"
)

// Config is the top-level application configuration.
type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	Sieve   SieveConfig   `mapstructure:"sieve"`
	Miner   MinerConfig   `mapstructure:"miner"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SieveConfig controls prime-table construction, shared across every block
// processed for the lifetime of the process.
type SieveConfig struct {
	SieveMax        uint64 `mapstructure:"sieve_max"`
	PrimorialNumber uint32 `mapstructure:"primorial_number"`
}

// MinerConfig controls the per-block search: thread budget, the tuple
// length required for a share, and connectivity to the block source.
type MinerConfig struct {
	Threads        int           `mapstructure:"threads"`
	TuplesRequired uint8         `mapstructure:"tuples_required"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl"`
	RPCURL         string        `mapstructure:"rpc_url"`
	RPCUser        string        `mapstructure:"rpc_user"`
	RPCPassword    string        `mapstructure:"rpc_password"`
}

// LogConfig mirrors the fields the logging factory's LogConfig accepts;
// kept separate from logging.LogConfig so this package never imports it.
type LogConfig struct {
	Level           string `mapstructure:"level"`
	Encoding        string `mapstructure:"encoding"`
	OutputPath      string `mapstructure:"output_path"`
	ErrorOutputPath string `mapstructure:"error_output_path"`
	Development     bool   `mapstructure:"development"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
	MaxBackups      int    `mapstructure:"max_backups"`
	MaxAgeDays      int    `mapstructure:"max_age_days"`
	Compress        bool   `mapstructure:"compress"`
	DisableCaller   bool   `mapstructure:"disable_caller"`
	DisableStack    bool   `mapstructure:"disable_stacktrace"`
}

// MetricsConfig controls the /metrics and /healthz HTTP surface.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads configPath as YAML into a Config, applying defaults first and
// validating the result afterward. Environment variables prefixed
// SEXTSIEVE_ override any file value.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SEXTSIEVE")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := NewEnvLoader("SEXTSIEVE").Load(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Reload re-reads configPath and returns a fresh, validated Config. Callers
// driving hot-reload (see Watcher) apply the result only at a safe boundary
// — the running miner never swaps its prime table mid-block.
func Reload(configPath string) (*Config, error) {
	return Load(configPath)
}

func setDefaults() {
	viper.SetDefault("mode", "solo")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("sieve.sieve_max", 4294967296)
	viper.SetDefault("sieve.primorial_number", 40)

	viper.SetDefault("miner.threads", 0) // 0 = auto (CPU count)
	viper.SetDefault("miner.tuples_required", 6)
	viper.SetDefault("miner.dedup_ttl", "2m")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.encoding", "console")
	viper.SetDefault("log.output_path", "stdout")
	viper.SetDefault("log.error_output_path", "stderr")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 14)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.listen_addr", ":9090")
}

func validate(cfg *Config) error {
	validModes := map[string]bool{"solo": true, "pool": true}
	if !validModes[cfg.Mode] {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	if cfg.Sieve.PrimorialNumber < 5 {
		return fmt.Errorf("sieve.primorial_number must be at least 5")
	}

	if cfg.Miner.Threads < 0 {
		return fmt.Errorf("miner.threads cannot be negative")
	}

	if cfg.Miner.TuplesRequired < 1 || cfg.Miner.TuplesRequired > 6 {
		return fmt.Errorf("miner.tuples_required must be between 1 and 6")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddr == "" {
			return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
		}
		if err := utils.ValidateAddress(cfg.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("metrics.listen_addr: %w", err)
		}
	}

	return nil
}
