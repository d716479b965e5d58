package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "shared", cfg.Server.Mode)
	assert.Equal(t, 5, cfg.Server.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "results.csv", cfg.Bench.Output)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
server:
  mode: isolated
  pool_size: 50
  port: 9000
store:
  type: filesystem
  filesystem:
    path: /tmp/filestorm-data
bench:
  timeout: 2m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level should be normalized")
	assert.Equal(t, "isolated", cfg.Server.Mode)
	assert.Equal(t, 50, cfg.Server.PoolSize)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "filesystem", cfg.Store.Type)
	assert.Equal(t, "/tmp/filestorm-data", cfg.Store.Filesystem["path"])
	assert.Equal(t, 2*time.Minute, cfg.Bench.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rules(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "bad mode",
			mutate:  func(cfg *Config) { cfg.Server.Mode = "fibers" },
			wantErr: "oneof",
		},
		{
			name:    "bad store type",
			mutate:  func(cfg *Config) { cfg.Store.Type = "redis" },
			wantErr: "oneof",
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: "lte",
		},
		{
			name: "isolated mode with memory store",
			mutate: func(cfg *Config) {
				cfg.Server.Mode = "isolated"
				cfg.Store.Type = "memory"
			},
			wantErr: "shared store medium",
		},
		{
			name: "isolated mode with filesystem store",
			mutate: func(cfg *Config) {
				cfg.Server.Mode = "isolated"
				cfg.Store.Type = "filesystem"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
