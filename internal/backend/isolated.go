package backend

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"

	"filestorm/internal/logger"
)

// ProcessPool executes units of work in separate OS worker processes, each
// with its own address space. The listening socket is duplicated into every
// child (fd 3), and each child accepts and handles one connection at a time,
// so at most P units run concurrently; excess connections queue in the
// kernel accept backlog in arrival order.
//
// Workers share no memory, so the file store they open must live on a medium
// all of them can reach; the configuration layer enforces that.
type ProcessPool struct {
	state

	size int

	// workerArgs is the argument vector, after the executable path, that
	// re-invokes this binary as a worker (store location, log level).
	workerArgs []string

	cmds []*exec.Cmd
}

func NewProcessPool(size int, workerArgs []string) *ProcessPool {
	if size < 1 {
		size = 1
	}
	return &ProcessPool{size: size, workerArgs: workerArgs}
}

func (p *ProcessPool) Serve(ctx context.Context, lis net.Listener) error {
	if !p.transition(StateIdle, StateStarting) {
		return ErrNotAccepting
	}

	tcp, ok := lis.(*net.TCPListener)
	if !ok {
		p.set(StateStopped)
		return fmt.Errorf("isolated pool needs a TCP listener, got %T", lis)
	}

	// Duplicate the listening socket once; Start duplicates it again into
	// each child as fd 3.
	file, err := tcp.File()
	if err != nil {
		p.set(StateStopped)
		return fmt.Errorf("export listener: %w", err)
	}
	defer file.Close()

	exe, err := os.Executable()
	if err != nil {
		p.set(StateStopped)
		return fmt.Errorf("locate executable: %w", err)
	}

	for i := 0; i < p.size; i++ {
		cmd := exec.Command(exe, p.workerArgs...)
		cmd.ExtraFiles = []*os.File{file}
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), fmt.Sprintf("FILESTORM_WORKER_ID=%d", i))

		if err := cmd.Start(); err != nil {
			p.killAll()
			p.set(StateStopped)
			return fmt.Errorf("spawn worker %d/%d: %w", i+1, p.size, err)
		}
		logger.Debug("spawned worker %d pid=%d", i, cmd.Process.Pid)
		p.cmds = append(p.cmds, cmd)
	}

	p.markAccepting()
	logger.Debug("isolated pool accepting with %d worker processes", p.size)

	<-ctx.Done()
	// The parent never accepts on this socket; closing its listener leaves
	// the children's duplicated descriptors open until Drain tears them down.
	lis.Close()
	return nil
}

// Drain asks every worker to finish its in-flight connection and exit, then
// waits. Workers still alive when the deadline passes are killed.
func (p *ProcessPool) Drain(ctx context.Context) error {
	if !p.transition(StateAccepting, StateDraining) &&
		!p.transition(StateStarting, StateDraining) {
		return ErrNotAccepting
	}

	for _, cmd := range p.cmds {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Debug("signal worker pid=%d: %v", cmd.Process.Pid, err)
		}
	}

	done := make(chan struct{})
	go func() {
		for _, cmd := range p.cmds {
			if err := cmd.Wait(); err != nil {
				logger.Debug("worker pid=%d exited: %v", cmd.Process.Pid, err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		p.set(StateStopped)
		return nil
	case <-ctx.Done():
		p.killAll()
		<-done
		p.set(StateStopped)
		return ErrDrainDeadline
	}
}

func (p *ProcessPool) killAll() {
	for _, cmd := range p.cmds {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
}
