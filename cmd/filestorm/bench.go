package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"filestorm/internal/logger"
	"filestorm/internal/orchestrator"
)

var benchFlags struct {
	output string
	plan   string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the full scenario matrix and write a CSV of results",
	Long: `bench sweeps the benchmark matrix: for every combination of
concurrency mode, operation, payload volume, client-pool size, and
server-pool size it starts a fresh server, drives a client pool against it,
and appends one CSV row. The default matrix is 2x3x3x3x3, 162 scenarios; a
plan file can narrow any axis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if benchFlags.output != "" {
			cfg.Bench.Output = benchFlags.output
		}
		if benchFlags.plan != "" {
			cfg.Bench.Plan = benchFlags.plan
		}

		matrix := orchestrator.DefaultMatrix()
		if cfg.Bench.Plan != "" {
			var err error
			matrix, err = orchestrator.LoadMatrix(cfg.Bench.Plan)
			if err != nil {
				return err
			}
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}

		out, err := os.Create(cfg.Bench.Output)
		if err != nil {
			return fmt.Errorf("create results file: %w", err)
		}
		defer out.Close()

		w, err := orchestrator.NewResultWriter(out)
		if err != nil {
			return err
		}

		scenarios := len(matrix.Scenarios())
		logger.Info("benchmark matrix: %d scenarios, results to %s",
			scenarios, cfg.Bench.Output)

		results, err := orchestrator.Run(ctx, orchestrator.Config{
			Host:      cfg.Server.Host,
			Timeout:   cfg.Bench.Timeout,
			RateLimit: cfg.Bench.RateLimit,
			Compress:  cfg.Bench.Compress,
			DataDir:   cfg.Bench.DataDir,
			ServerWorkerArgs: func(storeRoot string) []string {
				return []string{"worker", "--root", storeRoot,
					"--log-level", cfg.Logging.Level}
			},
			ClientWorkerCommand: []string{exe, "load-worker"},
			Progress:            orchestrator.NewBarProgress(),
		}, matrix, w)
		if err != nil {
			return err
		}

		var failed int
		for _, r := range results {
			if r.Fail > 0 {
				failed++
			}
		}
		if failed > 0 {
			color.Yellow("%d/%d scenarios completed, %d with failures",
				len(results), scenarios, failed)
		} else {
			color.Green("all %d scenarios completed", len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.output, "output", "o", "", "results CSV path (overrides config)")
	benchCmd.Flags().StringVar(&benchFlags.plan, "plan", "", "YAML plan file narrowing the matrix")
}
