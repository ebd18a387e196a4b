package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webbank/handlers"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and UI",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	log := app.Logger
	cfg := app.Config

	if _, err := app.Mirror.LookPath(); err != nil {
		log.Warn("Mirror binary not available, saves will fail until it is installed", zap.Error(err))
	}
	if n := app.Files.Reap(cfg.Storage.TempKeep); n > 0 {
		log.Info("Cleared leftover temp entries", zap.Int("entries", n))
	}

	h := handlers.New(app.Service, log.Named("http"))
	server := handlers.NewApp(h, handlers.AppOptions{
		BodyLimit: cfg.BodyLimitBytes(),
		StaticDir: cfg.Server.StaticDir,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("http server started", zap.String("addr", addr), zap.Stringer("app", app))
		errCh <- server.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown initiated")
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}
