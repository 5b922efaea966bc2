package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tutor over HTTP and WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logger, err := newLogger(cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		m := metrics.New()
		deps, err := buildTutor(ctx, cfg, st, logger, m)
		if err != nil {
			return err
		}
		defer deps.Close()

		// Graceful shutdown on SIGINT / SIGTERM.
		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		srv := server.New(ctx, cfg.Server, server.Deps{
			Lessons:  deps.Service,
			Mistakes: st.MistakeRepo(),
			Metrics:  m,
			Logger:   logger,
		})

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				zap.String("addr", cfg.Server.Addr),
				zap.String("model", deps.Provider.ModelID()),
				zap.String("sessions", cfg.Session.Backend))
			errCh <- srv.Start(ctx)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
