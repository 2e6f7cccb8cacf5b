package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/findyourcar/pkg/config"
)

var (
	servePort   string
	serveAssets string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog page and JSON API",
	Long: `Serve the catalog over HTTP. The catalog loads in the background on
startup; until it finishes the API reports loading: true.

Routes:
  GET  /                 catalog page
  GET  /api/health       liveness
  GET  /api/cars         current snapshot
  POST /api/search       {"query": "..."}
  POST /api/price        {"min": n, "max": n}
  POST /api/reset        clear search and price, reload
  GET  /metrics          Prometheus text metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}
		logger := newLogger(os.Stdout, cfg.LogLevel)
		a := newApp(cfg, logger)
		defer a.Close()

		if err := serve(a); err != nil {
			logger.Error("server exited with error", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveAssets, "assets", "assets", "directory served at /assets/")
}

func serve(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial load. The server answers while it runs.
	go func() {
		if err := a.session.Load(ctx); err != nil {
			a.logger.Warn("initial catalog load", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      newRouter(a.session, a.reg, a.logger, a.cfg.CORSOrigin, serveAssets),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("findyourcar server starting", "port", a.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
