package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"filestorm/internal/logger"
	"filestorm/internal/server"
	"filestorm/internal/store"
	"filestorm/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the file server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := server.Mode(cfg.Server.Mode)

		var st store.Store
		if mode == server.ModeShared {
			var err error
			st, err = config.CreateStore(ctx, &cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()
		}

		srv := server.New(server.Config{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			Mode:            mode,
			PoolSize:        cfg.Server.PoolSize,
			QueueDepth:      cfg.Server.QueueDepth,
			MaxConnections:  cfg.Server.MaxConnections,
			RateLimit:       cfg.Server.RateLimit,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			WorkerArgs:      serverWorkerArgs(),
		}, st)

		if err := srv.Serve(ctx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	},
}

// serverWorkerArgs builds the argv tail that re-invokes this binary as an
// isolated server worker over the same configuration.
func serverWorkerArgs() []string {
	args := []string{"worker"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	args = append(args, "--log-level", cfg.Logging.Level)
	return args
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Highest-traffic knobs mirror into flags; everything else comes from
	// the config file or FILESTORM_ environment variables.
	serveCmd.Flags().IntVar(&flagPort, "port", -1, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&flagMode, "mode", "", "concurrency mode: shared or isolated (overrides config)")
	serveCmd.Flags().IntVar(&flagPool, "pool-size", 0, "worker pool size (overrides config)")
	serveCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if flagPort >= 0 {
			cfg.Server.Port = flagPort
		}
		if flagMode != "" {
			cfg.Server.Mode = flagMode
		}
		if flagPool > 0 {
			cfg.Server.PoolSize = flagPool
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		logger.Info("starting file server: mode=%s pool=%d store=%s",
			cfg.Server.Mode, cfg.Server.PoolSize, cfg.Store.Type)
		return nil
	}
}

var (
	flagPort int
	flagMode string
	flagPool int
)
