package loadgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filestorm/internal/protocol"
	"filestorm/internal/server"
	"filestorm/internal/store/memory"
)

func startServer(t *testing.T) string {
	t.Helper()

	srv := server.New(server.Config{
		Host:            "127.0.0.1",
		Mode:            server.ModeShared,
		PoolSize:        8,
		ShutdownTimeout: 2 * time.Second,
	}, memory.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv.Addr().String()
}

func TestRun_UploadPool(t *testing.T) {
	target := startServer(t)

	const volume = 32 << 10
	report, err := Run(context.Background(), Config{
		Mode:        ModeShared,
		Operation:   protocol.OpUpload,
		VolumeBytes: volume,
		ClientPool:  5,
		Target:      target,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Success)
	assert.Equal(t, 0, report.Fail)
	assert.Equal(t, int64(5*volume), report.TotalBytes)
	assert.Greater(t, report.Throughput, 0.0)
	assert.Greater(t, report.AvgTime, 0.0)
	assert.Len(t, report.Outcomes, 5)
}

func TestRun_DownloadPoolAfterSeed(t *testing.T) {
	target := startServer(t)
	ctx := context.Background()

	const volume = 16 << 10
	require.NoError(t, Seed(ctx, target, 5*time.Second, 3, volume))

	report, err := Run(ctx, Config{
		Mode:        ModeShared,
		Operation:   protocol.OpGet,
		VolumeBytes: volume,
		ClientPool:  6,
		SeedCount:   3,
		Target:      target,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Success)
	assert.Equal(t, int64(6*volume), report.TotalBytes)
}

func TestRun_ListPool(t *testing.T) {
	target := startServer(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, target, 5*time.Second, 2, 1024))

	report, err := Run(ctx, Config{
		Mode:       ModeShared,
		Operation:  protocol.OpList,
		ClientPool: 4,
		Target:     target,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Success)
	// LIST moves no file payload.
	assert.Zero(t, report.TotalBytes)
}

func TestRun_RecordsFailures(t *testing.T) {
	target := startServer(t)

	// GET without seeding: every client must fail NotFound, and the run
	// itself still succeeds.
	report, err := Run(context.Background(), Config{
		Mode:       ModeShared,
		Operation:  protocol.OpGet,
		ClientPool: 3,
		Target:     target,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Success)
	assert.Equal(t, 3, report.Fail)
	for _, out := range report.Outcomes {
		assert.Equal(t, protocol.KindNotFound, out.Kind)
	}
}

func TestRun_IsolatedDecodesWorkerOutcome(t *testing.T) {
	// A stand-in worker that ignores its flags and prints a fixed outcome.
	report, err := Run(context.Background(), Config{
		Mode:       ModeIsolated,
		Operation:  protocol.OpList,
		ClientPool: 2,
		Target:     "127.0.0.1:1",
		WorkerCommand: []string{
			"/bin/sh", "-c",
			`echo '{"elapsed_ns":1500000,"bytes":64,"success":true}'`,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Success)
	assert.Equal(t, int64(128), report.TotalBytes)
	for i, out := range report.Outcomes {
		assert.Equal(t, i, out.Worker)
	}
}

func TestRun_IsolatedNeedsWorkerCommand(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Mode:       ModeIsolated,
		Operation:  protocol.OpList,
		ClientPool: 1,
		Target:     "127.0.0.1:1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no worker command")
}

func TestBuildReport(t *testing.T) {
	outcomes := []Outcome{
		{Worker: 0, Elapsed: 100 * time.Millisecond, Bytes: 1000, Success: true},
		{Worker: 1, Elapsed: 300 * time.Millisecond, Bytes: 1000, Success: true},
		{Worker: 2, Kind: protocol.KindTimeout, Err: "timed out"},
	}

	r := BuildReport(outcomes, time.Second)

	assert.Equal(t, 2, r.Success)
	assert.Equal(t, 1, r.Fail)
	assert.Equal(t, int64(2000), r.TotalBytes)
	assert.InDelta(t, 0.2, r.AvgTime, 0.001)
	// Slowest worker took 300ms, so 2000 bytes over 0.3s.
	assert.InDelta(t, 2000.0/0.3, r.Throughput, 0.1)
	assert.GreaterOrEqual(t, r.P95, r.P50)
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport(nil, 0)
	assert.Zero(t, r.Success)
	assert.Zero(t, r.Fail)
	assert.Zero(t, r.AvgTime)
	assert.Zero(t, r.Throughput)
}

func TestSafeHistogram(t *testing.T) {
	h := NewSafeHistogram()
	for i := 1; i <= 100; i++ {
		require.NoError(t, h.Record(time.Duration(i)*time.Millisecond))
	}

	p50 := h.Quantile(50)
	p99 := h.Quantile(99)
	assert.InDelta(t, 50*time.Millisecond, p50, float64(2*time.Millisecond))
	assert.GreaterOrEqual(t, p99, p50)
	assert.InDelta(t, 100*time.Millisecond, h.Max(), float64(time.Millisecond))
}
