package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filestorm/internal/client"
	"filestorm/internal/loadgen"
	"filestorm/internal/protocol"
)

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestIsolated_RoundTrip(t *testing.T) {
	sp := startIsolatedServer(t, 2)
	ctx := context.Background()
	opts := client.Options{Target: sp.Addr, Timeout: 10 * time.Second}

	payload := randomPayload(t, 256*1024)
	_, err := client.Do(ctx, protocol.OpUpload, "blob.bin", payload, opts)
	require.NoError(t, err)

	got, err := client.Do(ctx, protocol.OpGet, "blob.bin", nil, opts)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got), "payload must survive the worker round trip")

	listing, err := client.Do(ctx, protocol.OpList, "", nil, opts)
	require.NoError(t, err)
	assert.Equal(t, "blob.bin", string(listing))

	// The store medium is the scenario directory, written by a worker
	// process, not by the parent.
	assert.FileExists(t, filepath.Join(sp.StoreRoot, "blob.bin"))

	_, err = client.Do(ctx, protocol.OpDelete, "blob.bin", nil, opts)
	require.NoError(t, err)

	_, err = client.Do(ctx, protocol.OpGet, "blob.bin", nil, opts)
	assert.Equal(t, protocol.KindNotFound, client.Kind(err))
}

// TestIsolated_ConcurrentClientsAcrossWorkers drives more clients than there
// are worker processes, so connections spread over the pool and queue in the
// accept backlog, and verifies no upload corrupts another.
func TestIsolated_ConcurrentClientsAcrossWorkers(t *testing.T) {
	sp := startIsolatedServer(t, 3)
	ctx := context.Background()
	opts := client.Options{Target: sp.Addr, Timeout: 30 * time.Second}

	const clients = 9
	payloads := make([][]byte, clients)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		payloads[i] = randomPayload(t, 128*1024)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("worker-%d.bin", i)
			_, err := client.Do(ctx, protocol.OpUpload, name, payloads[i], opts)
			assert.NoError(t, err, "upload %d", i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < clients; i++ {
		got, err := client.Do(ctx, protocol.OpGet, fmt.Sprintf("worker-%d.bin", i), nil, opts)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payloads[i], got),
			"record %d corrupted across worker processes", i)
	}

	listing, err := client.Do(ctx, protocol.OpList, "", nil, opts)
	require.NoError(t, err)
	assert.Len(t, strings.Split(string(listing), "\n"), clients)
}

func TestIsolated_GracefulShutdown(t *testing.T) {
	sp := startIsolatedServer(t, 2)
	ctx := context.Background()
	opts := client.Options{Target: sp.Addr, Timeout: 10 * time.Second}

	_, err := client.Do(ctx, protocol.OpUpload, "pre-stop.bin", []byte("x"), opts)
	require.NoError(t, err)

	// Stop asserts a clean exit: SIGTERM, workers drain, status zero.
	sp.Stop()

	_, err = client.Do(ctx, protocol.OpList, "", nil, client.Options{
		Target: sp.Addr, Timeout: time.Second,
	})
	assert.Error(t, err, "server still accepting after shutdown")
}

// TestLoadWorker_ReportsOutcome drives the one-shot client subcommand the
// isolated load pool forks, and decodes its JSON outcome.
func TestLoadWorker_ReportsOutcome(t *testing.T) {
	sp := startIsolatedServer(t, 2)

	const volume = 64 * 1024
	cmd := exec.Command(binaryPath, "load-worker",
		"--target", sp.Addr,
		"--op", string(protocol.OpUpload),
		"--volume", fmt.Sprintf("%d", volume),
		"--worker", "0",
		"--timeout", "10s")
	out, err := cmd.Output()
	require.NoError(t, err)

	var outcome loadgen.Outcome
	require.NoError(t, json.Unmarshal(out, &outcome))
	assert.True(t, outcome.Success, "load-worker failed: %s", outcome.Err)
	assert.EqualValues(t, volume, outcome.Bytes)
	assert.Greater(t, outcome.Elapsed, time.Duration(0))
}
