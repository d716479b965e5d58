package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"filestorm/internal/loadgen"
	"filestorm/internal/protocol"
)

var loadWorkerFlags struct {
	target    string
	op        string
	volume    int64
	worker    int
	seedCount int
	timeout   time.Duration
	compress  bool
}

// loadWorkerCmd is the isolated-mode client worker: it performs exactly one
// operation and prints the outcome as JSON on stdout. Operation failures are
// reported in the outcome, not the exit status, so the pool can aggregate
// them. Never invoked by hand.
var loadWorkerCmd = &cobra.Command{
	Use:    "load-worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := loadgen.DoOne(cmd.Context(), loadgen.Config{
			Operation:   protocol.Op(loadWorkerFlags.op),
			VolumeBytes: loadWorkerFlags.volume,
			SeedCount:   loadWorkerFlags.seedCount,
			Target:      loadWorkerFlags.target,
			Timeout:     loadWorkerFlags.timeout,
			Compress:    loadWorkerFlags.compress,
		}, loadWorkerFlags.worker)

		return json.NewEncoder(os.Stdout).Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(loadWorkerCmd)

	f := loadWorkerCmd.Flags()
	f.StringVar(&loadWorkerFlags.target, "target", "", "server host:port")
	f.StringVar(&loadWorkerFlags.op, "op", "", "operation: LIST, GET, or UPLOAD")
	f.Int64Var(&loadWorkerFlags.volume, "volume", 0, "payload volume in bytes")
	f.IntVar(&loadWorkerFlags.worker, "worker", 0, "worker index within the pool")
	f.IntVar(&loadWorkerFlags.seedCount, "seed-count", 1, "number of seeded download targets")
	f.DurationVar(&loadWorkerFlags.timeout, "timeout", time.Minute, "per-operation timeout")
	f.BoolVar(&loadWorkerFlags.compress, "compress", false, "LZ4-compress payloads on the wire")

	loadWorkerCmd.MarkFlagRequired("target")
	loadWorkerCmd.MarkFlagRequired("op")
}
