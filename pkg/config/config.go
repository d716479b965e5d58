// Package config loads, defaults, and validates the filestorm configuration,
// and builds stores from it.
//
// Configuration sources, highest precedence first: environment variables
// (FILESTORM_*), a YAML configuration file, then built-in defaults. Each
// store type keeps its options in its own map section; only the section
// matching the selected type is decoded.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete filestorm configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the file server settings.
	Server ServerConfig `mapstructure:"server"`

	// Store selects the file store type and its type-specific options.
	Store StoreConfig `mapstructure:"store"`

	// Bench contains the load-generation and matrix-run settings.
	Bench BenchConfig `mapstructure:"bench"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output is where logs go: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains the file server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`

	// Port 0 picks an ephemeral port.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`

	// Mode selects the concurrency backend: shared or isolated.
	Mode string `mapstructure:"mode" validate:"required,oneof=shared isolated"`

	// PoolSize bounds concurrent connection handling.
	PoolSize int `mapstructure:"pool_size" validate:"required,gte=1"`

	// QueueDepth bounds connections queued between accept and handling
	// in shared mode. Zero defaults to PoolSize.
	QueueDepth int `mapstructure:"queue_depth" validate:"gte=0"`

	// MaxConnections caps simultaneously open connections in shared
	// mode. Zero means uncapped.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0"`

	// RateLimit throttles request handling, ops per second across the
	// server. Zero disables throttling.
	RateLimit uint `mapstructure:"rate_limit"`

	// ShutdownTimeout bounds the graceful drain at stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StoreConfig selects the file store implementation.
//
// The Type field determines which implementation is used; only the matching
// options section is decoded.
type StoreConfig struct {
	// Type is one of: memory, filesystem, badger, s3.
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem badger s3"`

	// Filesystem options, used when Type = "filesystem".
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Badger options, used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`

	// S3 options, used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// BenchConfig contains load-generation and matrix-run settings.
type BenchConfig struct {
	// Output is the CSV file results are appended to.
	Output string `mapstructure:"output" validate:"required"`

	// Timeout bounds each client operation.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`

	// RateLimit paces client issue, ops per second. Zero disables pacing.
	RateLimit uint `mapstructure:"rate_limit"`

	// Compress enables LZ4 payload compression on the wire.
	Compress bool `mapstructure:"compress"`

	// DataDir parents the per-scenario store directories for isolated
	// scenarios. Empty uses the system temp directory.
	DataDir string `mapstructure:"data_dir"`

	// Plan optionally narrows the scenario matrix from a YAML file.
	Plan string `mapstructure:"plan"`
}

// Load reads configuration from file, environment, and defaults, then
// validates it. An empty configPath skips the file and uses environment
// plus defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// FILESTORM_SERVER_MODE=isolated etc.
	v.SetEnvPrefix("FILESTORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
