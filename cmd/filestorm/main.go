// filestorm is a concurrent file-transfer service and its load harness: a
// framed TCP file server with selectable concurrency backends, a synthetic
// client pool, and a scenario orchestrator that sweeps the full benchmark
// matrix.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filestorm/internal/logger"
	"filestorm/pkg/config"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "filestorm",
	Short: "Concurrent file-transfer service and load harness",
	Long: `filestorm serves LIST/GET/UPLOAD/DELETE over a framed TCP protocol
with a choice of concurrency backend (goroutine pool or isolated worker
processes), and benchmarks that service across a scenario matrix of
concurrency modes, operations, payload volumes, and pool sizes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger.SetLevel(cfg.Logging.Level)
		return configureLogOutput(cfg.Logging.Output)
	},
}

func configureLogOutput(output string) error {
	switch output {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
}
