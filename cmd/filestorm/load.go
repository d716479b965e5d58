package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"filestorm/internal/loadgen"
	"filestorm/internal/protocol"
)

var loadFlags struct {
	target   string
	op       string
	volume   int64
	clients  int
	mode     string
	timeout  time.Duration
	rate     uint
	compress bool
	seed     bool
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Drive one client pool against a running server",
	Long: `load runs a single pool of synthetic clients, each performing the
configured operation once, and prints the aggregated report. The target
server must already be running (see "filestorm serve").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		op := protocol.Op(loadFlags.op)
		switch op {
		case protocol.OpList, protocol.OpGet, protocol.OpUpload:
		default:
			return fmt.Errorf("unsupported load operation %q", loadFlags.op)
		}

		if loadFlags.seed && (op == protocol.OpGet || op == protocol.OpList) {
			if err := loadgen.Seed(ctx, loadFlags.target, loadFlags.timeout, 1, loadFlags.volume); err != nil {
				return err
			}
		}

		lcfg := loadgen.Config{
			Mode:        loadgen.Mode(loadFlags.mode),
			Operation:   op,
			VolumeBytes: loadFlags.volume,
			ClientPool:  loadFlags.clients,
			SeedCount:   1,
			Target:      loadFlags.target,
			Timeout:     loadFlags.timeout,
			RateLimit:   loadFlags.rate,
			Compress:    loadFlags.compress,
		}
		if lcfg.Mode == loadgen.ModeIsolated {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			lcfg.WorkerCommand = []string{exe, "load-worker"}
		}

		report, err := loadgen.Run(ctx, lcfg)
		if err != nil {
			return err
		}

		printReport(report)
		if report.Fail > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func printReport(r *loadgen.Report) {
	bold := color.New(color.Bold)

	bold.Println("--- pool report ---")
	fmt.Printf("clients:     %d (%d ok, %d failed)\n",
		r.Success+r.Fail, r.Success, r.Fail)
	fmt.Printf("elapsed:     %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Printf("transferred: %d bytes\n", r.TotalBytes)
	fmt.Printf("avg time:    %.4fs\n", r.AvgTime)
	fmt.Printf("throughput:  %.2f B/s\n", r.Throughput)
	fmt.Printf("latency:     p50=%v p95=%v p99=%v\n",
		r.P50.Round(time.Microsecond),
		r.P95.Round(time.Microsecond),
		r.P99.Round(time.Microsecond))

	for _, out := range r.Outcomes {
		if !out.Success {
			color.Red("worker %d failed: %s", out.Worker, out.Err)
		}
	}
}

func init() {
	rootCmd.AddCommand(loadCmd)

	f := loadCmd.Flags()
	f.StringVar(&loadFlags.target, "target", "127.0.0.1:9876", "server host:port")
	f.StringVar(&loadFlags.op, "op", "UPLOAD", "operation: LIST, GET, or UPLOAD")
	f.Int64Var(&loadFlags.volume, "volume", 10<<20, "payload volume in bytes")
	f.IntVar(&loadFlags.clients, "clients", 5, "client pool size")
	f.StringVar(&loadFlags.mode, "mode", "shared", "client concurrency mode: shared or isolated")
	f.DurationVar(&loadFlags.timeout, "timeout", time.Minute, "per-operation timeout")
	f.UintVar(&loadFlags.rate, "rate", 0, "pace client issue, ops per second (0 = unpaced)")
	f.BoolVar(&loadFlags.compress, "compress", false, "LZ4-compress payloads on the wire")
	f.BoolVar(&loadFlags.seed, "seed", true, "upload a target file before GET/LIST runs")
}
