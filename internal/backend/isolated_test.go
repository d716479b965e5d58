package backend

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubListener is a net.Listener that is not TCP, so ProcessPool.Serve must
// fail before spawning anything.
type stubListener struct{}

func (stubListener) Accept() (net.Conn, error) { return nil, net.ErrClosed }
func (stubListener) Close() error              { return nil }
func (stubListener) Addr() net.Addr            { return &net.UnixAddr{Name: "stub"} }

// TestProcessPool_ServeFailureLeavesStartedOpen pins the startup contract
// every pool shares: a Serve that fails before accepting ends Stopped and
// never closes Started, so a caller selecting Started against Serve's return
// always learns about the failure instead of admitting clients.
func TestProcessPool_ServeFailureLeavesStartedOpen(t *testing.T) {
	pool := NewProcessPool(2, []string{"worker"})

	err := pool.Serve(context.Background(), stubListener{})
	assert.Error(t, err)
	assert.Equal(t, StateStopped, pool.State())

	select {
	case <-pool.Started():
		t.Fatal("Started closed on a pool that never accepted")
	default:
	}
}
