package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults and
// normalizes the log level to uppercase. Explicit values are never
// overridden.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "shared"
	}
	if cfg.Server.PoolSize == 0 {
		cfg.Server.PoolSize = 5
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}

	if cfg.Bench.Output == "" {
		cfg.Bench.Output = "results.csv"
	}
	if cfg.Bench.Timeout == 0 {
		cfg.Bench.Timeout = 5 * time.Minute
	}
}
