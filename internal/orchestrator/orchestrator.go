// Package orchestrator enumerates the benchmark scenario matrix and runs
// each combination against a freshly started server, one scenario at a time
// so measurements never contaminate each other.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"filestorm/internal/client"
	"filestorm/internal/loadgen"
	"filestorm/internal/logger"
	"filestorm/internal/protocol"
	"filestorm/internal/server"
	"filestorm/internal/store"
	"filestorm/internal/store/fs"
	"filestorm/internal/store/memory"
)

// Scenario is one fixed combination of the matrix dimensions. It fully
// determines a test run.
type Scenario struct {
	Mode        string
	Operation   protocol.Op
	VolumeBytes int64
	ClientPool  int
	ServerPool  int
}

func (s Scenario) String() string {
	return fmt.Sprintf("%s/%s vol=%s clients=%d servers=%d",
		s.Mode, s.Operation, formatVolume(s.VolumeBytes), s.ClientPool, s.ServerPool)
}

// Matrix holds the dimension values whose Cartesian product is the scenario
// set.
type Matrix struct {
	Modes       []string      `yaml:"modes"`
	Operations  []protocol.Op `yaml:"operations"`
	Volumes     []int64       `yaml:"volumes"`
	ClientPools []int         `yaml:"client_pools"`
	ServerPools []int         `yaml:"server_pools"`
}

// DefaultMatrix returns the standard 2x3x3x3x3 matrix, 162 scenarios.
func DefaultMatrix() Matrix {
	return Matrix{
		Modes:       []string{string(server.ModeShared), string(server.ModeIsolated)},
		Operations:  []protocol.Op{protocol.OpList, protocol.OpGet, protocol.OpUpload},
		Volumes:     []int64{10 << 20, 50 << 20, 100 << 20},
		ClientPools: []int{1, 5, 50},
		ServerPools: []int{1, 5, 50},
	}
}

// Scenarios expands the matrix in a fixed order: mode, operation, volume,
// client pool, server pool, innermost last.
func (m Matrix) Scenarios() []Scenario {
	var out []Scenario
	for _, mode := range m.Modes {
		for _, op := range m.Operations {
			for _, vol := range m.Volumes {
				for _, cp := range m.ClientPools {
					for _, sp := range m.ServerPools {
						out = append(out, Scenario{
							Mode:        mode,
							Operation:   op,
							VolumeBytes: vol,
							ClientPool:  cp,
							ServerPool:  sp,
						})
					}
				}
			}
		}
	}
	return out
}

// Result is one appended benchmark row.
type Result struct {
	Timestamp time.Time
	Scenario

	// AvgTime is the mean per-client round-trip, in seconds.
	AvgTime float64

	// Throughput is aggregate bytes per second over the pool.
	Throughput float64

	Success int
	Fail    int

	// FailureKind classifies whole-scenario failures, where no client ever
	// ran: a server that could not start carries BackendStartupFailure, a
	// failed seed upload carries the client's classification. Empty when
	// the pool executed; per-client failures live in the counts. Not part
	// of the CSV row.
	FailureKind protocol.ErrorKind
}

// Config controls a matrix run.
type Config struct {
	// Host binds every scenario server; ports are ephemeral.
	Host string

	// Timeout bounds each client operation.
	Timeout time.Duration

	// RateLimit paces client issue per scenario, ops per second.
	// Zero disables pacing.
	RateLimit uint

	// Compress enables LZ4 payload compression on the wire.
	Compress bool

	// DataDir parents the per-scenario store directories used in
	// isolated mode. Empty uses the system temp directory.
	DataDir string

	// ServerWorkerArgs builds the argument vector that re-invokes this
	// binary as a server worker over the given store root. Required for
	// isolated scenarios.
	ServerWorkerArgs func(storeRoot string) []string

	// ClientWorkerCommand runs one isolated client; per-client flags are
	// appended. Required for isolated scenarios.
	ClientWorkerCommand []string

	// Progress receives per-scenario completion events. May be nil.
	Progress Progress
}

// Run executes every scenario in the matrix sequentially and streams rows to
// w as they complete. Scenario failures, including servers that cannot
// start, still produce a row, so the result set always matches the matrix.
func Run(ctx context.Context, cfg Config, m Matrix, w *ResultWriter) ([]Result, error) {
	scenarios := m.Scenarios()
	if cfg.Progress != nil {
		cfg.Progress.Start(len(scenarios))
	}

	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := runScenario(ctx, cfg, sc)
		results = append(results, res)

		if w != nil {
			if err := w.Write(res); err != nil {
				return results, fmt.Errorf("write result row: %w", err)
			}
		}
		if cfg.Progress != nil {
			cfg.Progress.Step(res)
		}
	}

	if cfg.Progress != nil {
		cfg.Progress.Finish()
	}
	return results, nil
}

// runScenario starts a fresh server for sc, drives the client pool, and
// folds the report into a Result. Startup failures yield a row with every
// client counted as failed.
func runScenario(ctx context.Context, cfg Config, sc Scenario) Result {
	res := Result{Timestamp: time.Now(), Scenario: sc}

	st, storeRoot, cleanup, err := buildStore(cfg, sc)
	if err != nil {
		logger.Error("scenario %s: store: %v", sc, err)
		res.Fail = sc.ClientPool
		res.FailureKind = protocol.KindBackendStartup
		return res
	}
	defer cleanup()

	srvCfg := server.Config{
		Host:            cfg.Host,
		Port:            0,
		Mode:            server.Mode(sc.Mode),
		PoolSize:        sc.ServerPool,
		ShutdownTimeout: 30 * time.Second,
	}
	if srvCfg.Mode == server.ModeIsolated {
		if cfg.ServerWorkerArgs == nil {
			logger.Error("scenario %s: no server worker args configured", sc)
			res.Fail = sc.ClientPool
			res.FailureKind = protocol.KindBackendStartup
			return res
		}
		srvCfg.WorkerArgs = cfg.ServerWorkerArgs(storeRoot)
	}

	srv := server.New(srvCfg, st)
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(srvCtx) }()

	// Ready only fires once the backend is accepting; a worker-spawn failure
	// arrives on done instead, so no client ever dials a dead server.
	select {
	case <-srv.Ready():
	case err := <-done:
		logger.Error("scenario %s: server startup: %v", sc, err)
		res.Fail = sc.ClientPool
		res.FailureKind = protocol.KindBackendStartup
		return res
	case <-time.After(10 * time.Second):
		logger.Error("scenario %s: server never became ready", sc)
		res.Fail = sc.ClientPool
		res.FailureKind = protocol.KindBackendStartup
		return res
	}
	target := srv.Addr().String()

	if sc.Operation == protocol.OpGet || sc.Operation == protocol.OpList {
		if err := loadgen.Seed(ctx, target, cfg.Timeout, 1, sc.VolumeBytes); err != nil {
			logger.Error("scenario %s: seed: %v", sc, err)
			res.Fail = sc.ClientPool
			res.FailureKind = client.Kind(err)
			return res
		}
	}

	report, err := loadgen.Run(ctx, loadgen.Config{
		Mode:          loadgen.Mode(sc.Mode),
		Operation:     sc.Operation,
		VolumeBytes:   sc.VolumeBytes,
		ClientPool:    sc.ClientPool,
		Target:        target,
		Timeout:       cfg.Timeout,
		Compress:      cfg.Compress,
		RateLimit:     cfg.RateLimit,
		SeedCount:     1,
		WorkerCommand: cfg.ClientWorkerCommand,
	})

	stop()
	if serveErr := <-done; serveErr != nil {
		logger.Warn("scenario %s: server stop: %v", sc, serveErr)
	}

	if err != nil {
		logger.Error("scenario %s: pool: %v", sc, err)
		res.Fail = sc.ClientPool
		res.FailureKind = protocol.KindBackendStartup
		return res
	}

	res.AvgTime = report.AvgTime
	res.Throughput = report.Throughput
	res.Success = report.Success
	res.Fail = report.Fail
	return res
}

// buildStore picks the store for the scenario's mode: process-local memory
// for shared mode, a scenario-scoped directory for isolated mode so worker
// processes all reach the same files.
func buildStore(cfg Config, sc Scenario) (store.Store, string, func(), error) {
	if sc.Mode == string(server.ModeIsolated) {
		root, err := os.MkdirTemp(cfg.DataDir, "filestorm-scenario-")
		if err != nil {
			return nil, "", func() {}, fmt.Errorf("scenario store dir: %w", err)
		}
		st, err := fs.New(root)
		if err != nil {
			os.RemoveAll(root)
			return nil, "", func() {}, err
		}
		return st, root, func() {
			st.Close()
			os.RemoveAll(root)
		}, nil
	}

	st := memory.New()
	return st, "", func() { st.Close() }, nil
}

func formatVolume(b int64) string {
	switch {
	case b >= 1<<20 && b%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", b>>20)
	case b >= 1<<10 && b%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", b>>10)
	default:
		return fmt.Sprintf("%dB", b)
	}
}
