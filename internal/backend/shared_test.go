package backend

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialN opens n connections to addr and closes them when the test ends.
func dialN(t *testing.T, addr string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
	}
}

func TestSharedPool_BoundsConcurrency(t *testing.T) {
	const (
		poolSize = 3
		clients  = 12
	)

	var (
		active atomic.Int32
		peak   atomic.Int32
		wg     sync.WaitGroup
	)
	wg.Add(clients)

	handler := func(ctx context.Context, conn net.Conn) {
		defer wg.Done()
		defer conn.Close()

		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	pool := NewSharedPool(poolSize, clients, handler)
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() { serveDone <- pool.Serve(ctx, lis) }()

	dialN(t, lis.Addr().String(), clients)
	wg.Wait()

	cancel()
	require.NoError(t, <-serveDone)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
	defer drainCancel()
	require.NoError(t, pool.Drain(drainCtx))

	assert.LessOrEqual(t, peak.Load(), int32(poolSize),
		"more than pool-size units of work ran concurrently")
	assert.Equal(t, StateStopped, pool.State())
}

func TestSharedPool_DrainServesQueuedWork(t *testing.T) {
	var served atomic.Int32

	handler := func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		time.Sleep(5 * time.Millisecond)
		served.Add(1)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	const clients = 8
	pool := NewSharedPool(1, clients, handler)
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() { serveDone <- pool.Serve(ctx, lis) }()

	dialN(t, lis.Addr().String(), clients)

	// Give the acceptor time to park every connection in the queue, then
	// shut down; draining must still run the queued work.
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-serveDone)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	require.NoError(t, pool.Drain(drainCtx))

	assert.Equal(t, int32(clients), served.Load(), "queued connections were dropped")
}

func TestSharedPool_DrainDeadline(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		<-release
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	pool := NewSharedPool(1, 1, handler)
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() { serveDone <- pool.Serve(ctx, lis) }()

	dialN(t, lis.Addr().String(), 1)
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.NoError(t, <-serveDone)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer drainCancel()
	assert.ErrorIs(t, pool.Drain(drainCtx), ErrDrainDeadline)
	assert.Equal(t, StateStopped, pool.State())

	close(release)
}

func TestSharedPool_SingleServe(t *testing.T) {
	pool := NewSharedPool(1, 1, func(ctx context.Context, conn net.Conn) { conn.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- pool.Serve(ctx, lis) }()

	// Wait for the pool to leave Idle, then a second Serve must refuse.
	require.Eventually(t, func() bool { return pool.State() == StateAccepting },
		time.Second, time.Millisecond)

	lis2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis2.Close()
	assert.ErrorIs(t, pool.Serve(ctx, lis2), ErrNotAccepting)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSharedPool_StartedSignal(t *testing.T) {
	pool := NewSharedPool(1, 1, func(ctx context.Context, conn net.Conn) { conn.Close() })

	select {
	case <-pool.Started():
		t.Fatal("Started closed before Serve")
	default:
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- pool.Serve(ctx, lis) }()

	select {
	case <-pool.Started():
	case <-time.After(time.Second):
		t.Fatal("Started never closed")
	}
	assert.Equal(t, StateAccepting, pool.State())

	cancel()
	require.NoError(t, <-serveDone)
}

func TestDrainBeforeServe(t *testing.T) {
	shared := NewSharedPool(2, 2, nil)
	assert.ErrorIs(t, shared.Drain(context.Background()), ErrNotAccepting)
	assert.Equal(t, StateIdle, shared.State())

	proc := NewProcessPool(2, nil)
	assert.ErrorIs(t, proc.Drain(context.Background()), ErrNotAccepting)
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:      "idle",
		StateStarting:  "starting",
		StateAccepting: "accepting",
		StateDraining:  "draining",
		StateStopped:   "stopped",
	}
	for s, want := range states {
		assert.Equal(t, want, s.String())
	}
}
