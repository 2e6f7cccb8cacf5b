package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/pkg/config"
	"github.com/WessleyAI/findyourcar/pkg/natsutil"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log catalog load events published by running servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cfg.NATSURL == "" {
			return errors.New("watch needs a NATS server: set nats_url or FINDYOURCAR_NATS_URL")
		}
		logger := newLogger(os.Stdout, cfg.LogLevel)

		nc, err := natsutil.Connect(cfg.NATSURL, "findyourcar-watch", logger)
		if err != nil {
			return err
		}
		defer nc.Drain()

		sub, err := natsutil.Subscribe(nc, cfg.EventSubject, logger, func(_ context.Context, ev browser.CatalogLoaded) {
			logger.Info("catalog loaded",
				"id", ev.ID,
				"listings", ev.Listings,
				"makes", ev.Makes,
				"failed_makes", ev.FailedMakes,
				"error", ev.Error,
				"duration_ms", ev.DurationMS,
				"loaded_at", ev.LoadedAt,
			)
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		logger.Info("watching catalog events", "subject", cfg.EventSubject)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}
