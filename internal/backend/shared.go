package backend

import (
	"context"
	"errors"
	"net"
	"sync"

	"filestorm/internal/logger"
)

// SharedPool executes units of work on a fixed pool of goroutines sharing
// the process's memory and a single store instance. Accepted connections
// queue on a FIFO channel; when the queue is full the acceptor blocks, so
// excess submissions wait in arrival order and are never dropped.
type SharedPool struct {
	state

	size    int
	handler Handler
	jobs    chan net.Conn
	wg      sync.WaitGroup
}

// NewSharedPool builds a pool of size workers. queueDepth bounds the number
// of connections parked between acceptance and execution; zero selects a
// depth equal to the pool size.
func NewSharedPool(size, queueDepth int, handler Handler) *SharedPool {
	if size < 1 {
		size = 1
	}
	if queueDepth <= 0 {
		queueDepth = size
	}
	return &SharedPool{
		size:    size,
		handler: handler,
		jobs:    make(chan net.Conn, queueDepth),
	}
}

func (p *SharedPool) Serve(ctx context.Context, lis net.Listener) error {
	if !p.transition(StateIdle, StateStarting) {
		return ErrNotAccepting
	}

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.markAccepting()
	logger.Debug("shared pool accepting with %d workers", p.size)

	// Cancellation unblocks Accept by closing the listener.
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Debug("accept failed: %v", err)
			continue
		}

		select {
		case p.jobs <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

func (p *SharedPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for conn := range p.jobs {
		p.handler(ctx, conn)
	}
}

// Drain must be called after Serve has returned. Queued connections are
// still served; only the deadline forces termination.
func (p *SharedPool) Drain(ctx context.Context) error {
	if !p.transition(StateAccepting, StateDraining) &&
		!p.transition(StateStarting, StateDraining) {
		return ErrNotAccepting
	}
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.set(StateStopped)
		return nil
	case <-ctx.Done():
		// Workers are abandoned; their connections die with the process
		// or the cancelled serve context.
		p.set(StateStopped)
		return ErrDrainDeadline
	}
}
