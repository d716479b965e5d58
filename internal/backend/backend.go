// Package backend abstracts how a unit of work (one accepted connection)
// is executed. Two interchangeable strategies implement the same contract:
// a shared-pool of goroutines inside one process, and an isolated-pool of
// worker OS processes. The strategy is selected at server start-up from
// configuration; callers never inspect which variant they hold.
package backend

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

// State tracks a backend through its lifecycle. Stopped is terminal and only
// reachable from Draining, once in-flight work completes or the shutdown
// deadline forces termination.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateAccepting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotAccepting reports a Serve call on a backend that already ran.
	ErrNotAccepting = errors.New("backend: not in accepting state")

	// ErrDrainDeadline reports a Drain that hit its deadline with work
	// still in flight; the work was forcibly terminated.
	ErrDrainDeadline = errors.New("backend: drain deadline exceeded")
)

// Handler processes one accepted connection to completion.
type Handler func(ctx context.Context, conn net.Conn)

// Backend executes units of work with bounded concurrency.
//
// Serve takes ownership of the listener and blocks until ctx is cancelled or
// the listener fails. At most P units execute concurrently, where P is the
// configured pool size; submissions beyond P queue in arrival order rather
// than drop. Started is closed once Serve has reached the accepting state;
// a Serve that fails before that never closes it, so callers must select on
// Started against Serve's return. After Serve returns, Drain finishes
// in-flight work; it gives up, forcing termination, when its context expires.
type Backend interface {
	Serve(ctx context.Context, lis net.Listener) error
	Drain(ctx context.Context) error
	Started() <-chan struct{}
	State() State
}

// state is the embeddable atomic lifecycle tracker.
type state struct {
	v atomic.Int32

	startedOnce sync.Once
	started     chan struct{}
}

func (s *state) State() State { return State(s.v.Load()) }

// Started reports arrival in the accepting state. It stays open forever on
// a backend whose Serve failed before accepting.
func (s *state) Started() <-chan struct{} { return s.startedChan() }

func (s *state) startedChan() chan struct{} {
	s.startedOnce.Do(func() { s.started = make(chan struct{}) })
	return s.started
}

// markAccepting enters the accepting state and releases Started waiters.
func (s *state) markAccepting() {
	s.set(StateAccepting)
	close(s.startedChan())
}

func (s *state) set(next State) { s.v.Store(int32(next)) }

// transition moves from one state to the next only if the current state
// matches, keeping illegal jumps (Idle straight to Stopped, a second Serve)
// impossible.
func (s *state) transition(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
