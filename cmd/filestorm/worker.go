package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"filestorm/internal/logger"
	"filestorm/internal/server"
	"filestorm/internal/store"
	"filestorm/internal/store/fs"
	"filestorm/pkg/config"
)

// listenerFd is where the parent process places the duplicated listening
// socket for worker children.
const listenerFd = 3

var workerRoot string

// workerCmd is the isolated-mode server worker: it inherits the listening
// socket from its parent, opens its own store, and serves one connection at
// a time until told to stop. Never invoked by hand.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		file := os.NewFile(listenerFd, "listener")
		if file == nil {
			return fmt.Errorf("worker: no inherited listener on fd %d", listenerFd)
		}
		lis, err := net.FileListener(file)
		if err != nil {
			return fmt.Errorf("worker: recover listener: %w", err)
		}
		file.Close()
		defer lis.Close()

		st, err := workerStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		id := os.Getenv("FILESTORM_WORKER_ID")
		logger.Debug("worker %s serving on %s", id, lis.Addr())

		// Unblock the pending Accept when the parent signals shutdown.
		go func() {
			<-ctx.Done()
			lis.Close()
		}()

		for {
			conn, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					logger.Debug("worker %s stopping", id)
					return nil
				}
				logger.Debug("worker %s accept: %v", id, err)
				continue
			}
			// One connection at a time: pool concurrency is the number
			// of worker processes, not per-worker parallelism.
			server.ServeConn(ctx, conn, st, nil)
			conn.Close()
		}
	},
}

// workerStore opens the worker's own store instance. A --root flag short
// cuts to a filesystem store rooted there; otherwise the shared
// configuration decides.
func workerStore(ctx context.Context) (store.Store, error) {
	if workerRoot != "" {
		return fs.New(workerRoot)
	}
	return config.CreateStore(ctx, &cfg.Store)
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerRoot, "root", "", "filesystem store root (overrides configured store)")
}
