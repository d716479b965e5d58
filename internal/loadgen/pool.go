// Package loadgen drives pools of synthetic clients against a file server
// and aggregates their outcomes. A pool issues one operation per client, in
// one of two modes: concurrent goroutines inside this process, or one-shot
// worker processes that report their outcome as JSON on stdout.
package loadgen

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"filestorm/internal/client"
	"filestorm/internal/logger"
	"filestorm/internal/protocol"
	"filestorm/internal/ratelimiter"
)

// Mode selects how pool clients execute.
type Mode string

const (
	// ModeShared runs every client as a goroutine in this process.
	ModeShared Mode = "shared"

	// ModeIsolated runs every client as a separate worker process.
	ModeIsolated Mode = "isolated"
)

// Config describes one load run: a pool of clients all issuing the same
// operation once against the same target.
type Config struct {
	Mode      Mode
	Operation protocol.Op

	// VolumeBytes sizes the transfer: the generated payload for UPLOAD,
	// the expected file size for GET.
	VolumeBytes int64

	// ClientPool is the number of concurrent clients, each performing
	// exactly one operation.
	ClientPool int

	Target   string
	Timeout  time.Duration
	Compress bool

	// RateLimit paces issue across the pool, in operations per second.
	// Zero disables pacing.
	RateLimit uint

	// SeedCount is how many seeded files GET clients spread over.
	// Zero defaults to 1.
	SeedCount int

	// WorkerCommand is the argument vector, starting with the executable,
	// that runs one isolated client. Per-client flags are appended.
	// Required in isolated mode.
	WorkerCommand []string
}

// Outcome is the result of one client operation.
type Outcome struct {
	Worker  int                `json:"worker"`
	Elapsed time.Duration      `json:"elapsed_ns"`
	Bytes   int64              `json:"bytes"`
	Success bool               `json:"success"`
	Kind    protocol.ErrorKind `json:"kind,omitempty"`
	Err     string             `json:"error,omitempty"`
}

// SeedName names the nth seeded download target.
func SeedName(n int) string {
	return fmt.Sprintf("bench_%d.bin", n)
}

// Seed uploads count files of size bytes so GET and LIST runs have content
// to work against.
func Seed(ctx context.Context, target string, timeout time.Duration, count int, size int64) error {
	if count < 1 {
		count = 1
	}
	payload := randomPayload(size)
	opts := client.Options{Target: target, Timeout: timeout}

	for i := 0; i < count; i++ {
		if _, err := client.Do(ctx, protocol.OpUpload, SeedName(i), payload, opts); err != nil {
			return fmt.Errorf("seed %s: %w", SeedName(i), err)
		}
	}
	return nil
}

// DoOne performs a single client operation and classifies the result. worker
// identifies the client within its pool and selects the GET target.
func DoOne(ctx context.Context, cfg Config, worker int) Outcome {
	opts := client.Options{
		Target:   cfg.Target,
		Timeout:  cfg.Timeout,
		Compress: cfg.Compress,
	}

	var (
		name    string
		payload []byte
	)
	switch cfg.Operation {
	case protocol.OpUpload:
		// Unique name per client so uploads never contend on one entry.
		name = "ld-" + uuid.NewString()
		payload = randomPayload(cfg.VolumeBytes)
	case protocol.OpGet:
		seeds := cfg.SeedCount
		if seeds < 1 {
			seeds = 1
		}
		name = SeedName(worker % seeds)
	case protocol.OpList, protocol.OpDelete:
		// LIST takes no name; DELETE of seeds is not part of a load run.
	}

	start := time.Now()
	reply, err := client.Do(ctx, cfg.Operation, name, payload, opts)
	elapsed := time.Since(start)

	out := Outcome{Worker: worker, Elapsed: elapsed}
	if err != nil {
		out.Kind = client.Kind(err)
		out.Err = err.Error()
		return out
	}

	out.Success = true
	switch cfg.Operation {
	case protocol.OpUpload:
		out.Bytes = cfg.VolumeBytes
	case protocol.OpGet:
		out.Bytes = int64(len(reply))
	}
	return out
}

// Run executes the configured pool and aggregates every outcome into a
// Report. Individual operation failures are recorded, not returned; the
// error covers only the pool machinery itself.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.ClientPool < 1 {
		cfg.ClientPool = 1
	}

	var limiter *ratelimiter.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = ratelimiter.New(cfg.RateLimit, 1)
	}

	outcomes := make([]Outcome, cfg.ClientPool)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.ClientPool; i++ {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			switch cfg.Mode {
			case ModeIsolated:
				out, err := runWorkerProcess(gctx, cfg, i)
				if err != nil {
					return err
				}
				outcomes[i] = out
			default:
				outcomes[i] = DoOne(gctx, cfg, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildReport(outcomes, time.Since(start)), nil
}

// runWorkerProcess executes one client operation in a separate process and
// decodes the JSON outcome it prints.
func runWorkerProcess(ctx context.Context, cfg Config, worker int) (Outcome, error) {
	if len(cfg.WorkerCommand) == 0 {
		return Outcome{}, fmt.Errorf("isolated pool: no worker command configured")
	}

	args := append([]string(nil), cfg.WorkerCommand[1:]...)
	args = append(args,
		"--target", cfg.Target,
		"--op", string(cfg.Operation),
		"--volume", strconv.FormatInt(cfg.VolumeBytes, 10),
		"--worker", strconv.Itoa(worker),
		"--seed-count", strconv.Itoa(cfg.SeedCount),
		"--timeout", cfg.Timeout.String(),
	)
	if cfg.Compress {
		args = append(args, "--compress")
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, cfg.WorkerCommand[0], args...)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// The worker prints an outcome even on operation failure; a run
		// error means the process itself could not execute.
		logger.Debug("client worker %d: %v", worker, err)
		return Outcome{
			Worker: worker,
			Kind:   protocol.KindConnectionFailure,
			Err:    fmt.Sprintf("worker process: %v", err),
		}, nil
	}

	var out Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Outcome{}, fmt.Errorf("decode worker %d outcome: %w", worker, err)
	}
	out.Worker = worker
	return out, nil
}

// randomPayload builds size bytes of incompressible content.
func randomPayload(size int64) []byte {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	rand.Read(buf)
	return buf
}
