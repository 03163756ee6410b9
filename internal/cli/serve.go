package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/server"
)

func newServeCommand(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cycle loop and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}
			logger := o.logger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server_addr)")
	return cmd
}

func serve(ctx context.Context, cfg *app.Config, logger logging.Logger) error {
	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{ListenAddr: cfg.ServerAddr, Logger: logger},
		application.Orch, application.Components.Registry)
	if err != nil {
		_ = application.Shutdown(context.Background())
		return err
	}
	httpSrv := srv.HTTPServer()

	if err := application.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", logging.Field{Key: "addr", Value: cfg.ServerAddr})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("api server failed", logging.Field{Key: "error", Value: serveErr.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownGrace+10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", logging.Field{Key: "error", Value: err.Error()})
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("serving api: %w", serveErr)
	}
	return nil
}
