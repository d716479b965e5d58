package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"filestorm/internal/backend"
	"filestorm/internal/logger"
	"filestorm/internal/ratelimiter"
	"filestorm/internal/store"
)

// Mode selects the execution backend for accepted connections.
type Mode string

const (
	// ModeShared serves connections on a goroutine pool inside this
	// process, all sharing one store instance.
	ModeShared Mode = "shared"

	// ModeIsolated serves connections in separate worker processes that
	// inherit the listening socket. The store must live on a shared
	// medium (filesystem or object storage).
	ModeIsolated Mode = "isolated"
)

// Config carries everything needed to run a file server.
type Config struct {
	Host string
	Port int
	Mode Mode

	// PoolSize bounds concurrent connection handling: goroutines in
	// shared mode, worker processes in isolated mode.
	PoolSize int

	// QueueDepth bounds connections parked between accept and handling
	// in shared mode. Zero defaults to PoolSize.
	QueueDepth int

	// MaxConnections caps simultaneously open connections in shared
	// mode. Zero means no cap.
	MaxConnections int

	// ShutdownTimeout bounds the drain of in-flight work at stop.
	ShutdownTimeout time.Duration

	// RateLimit throttles request handling, in operations per second
	// across the whole server. Zero disables throttling.
	RateLimit uint

	// WorkerArgs is the argument vector that re-invokes this binary as
	// an isolated worker. Required in isolated mode.
	WorkerArgs []string
}

// Server accepts framed file-operation requests over TCP and executes them
// against a store, delegating connection handling to the configured backend.
type Server struct {
	cfg     Config
	store   store.Store
	limiter *ratelimiter.RateLimiter

	ready chan struct{}
	addr  net.Addr

	// newBackend is swapped by tests to inject failing backends.
	newBackend func(net.Listener) (backend.Backend, net.Listener, error)
}

// New builds a Server over st. In shared mode st is the store every worker
// goroutine shares; in isolated mode it is ignored, each worker process opens
// its own.
func New(cfg Config, st store.Store) *Server {
	var limiter *ratelimiter.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = ratelimiter.New(cfg.RateLimit, cfg.RateLimit)
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		limiter: limiter,
		ready:   make(chan struct{}),
	}
	s.newBackend = s.buildBackend
	return s
}

// Ready is closed once the backend is accepting connections; Addr is valid
// after that. A server whose backend fails to start never signals Ready;
// Serve returns the startup error instead.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address. Useful with port 0.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve listens, runs the backend until ctx is cancelled, then drains
// in-flight work within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	b, lis, err := s.newBackend(lis)
	if err != nil {
		lis.Close()
		return err
	}
	s.addr = lis.Addr()

	serveDone := make(chan error, 1)
	go func() { serveDone <- b.Serve(ctx, lis) }()

	// Readiness means the backend accepts work, not that the socket exists:
	// in isolated mode worker spawn can still fail after listen, and clients
	// admitted then would sit in a backlog no worker ever drains.
	select {
	case <-b.Started():
	case err := <-serveDone:
		select {
		case <-b.Started():
			// Came up, then exited on an already-cancelled context.
			// Requeue the result and drain normally below.
			serveDone <- err
		default:
			lis.Close()
			if err == nil {
				err = errors.New("backend exited before accepting")
			}
			return fmt.Errorf("start backend: %w", err)
		}
	}

	close(s.ready)
	logger.Info("server listening on %s (%s mode, pool %d)",
		s.addr, s.cfg.Mode, s.cfg.PoolSize)

	serveErr := <-serveDone

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := b.Drain(drainCtx); err != nil {
		logger.Warn("drain: %v", err)
		return errors.Join(serveErr, err)
	}
	logger.Info("server stopped")
	return serveErr
}

// buildBackend constructs the backend for the configured mode, wrapping the
// listener where the mode calls for it.
func (s *Server) buildBackend(lis net.Listener) (backend.Backend, net.Listener, error) {
	switch s.cfg.Mode {
	case ModeShared:
		if s.cfg.MaxConnections > 0 {
			lis = netutil.LimitListener(lis, s.cfg.MaxConnections)
		}
		return backend.NewSharedPool(s.cfg.PoolSize, s.cfg.QueueDepth, s.handleConn), lis, nil

	case ModeIsolated:
		if len(s.cfg.WorkerArgs) == 0 {
			return nil, lis, fmt.Errorf("isolated mode: no worker arguments configured")
		}
		return backend.NewProcessPool(s.cfg.PoolSize, s.cfg.WorkerArgs), lis, nil

	default:
		return nil, lis, fmt.Errorf("unknown server mode %q", s.cfg.Mode)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger.Debug("connection from %s", conn.RemoteAddr())
	ServeConn(ctx, conn, s.store, s.limiter)
}
