package main

import (
	"io"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/engine/catalog"
	"github.com/WessleyAI/findyourcar/engine/mock"
	"github.com/WessleyAI/findyourcar/engine/vpic"
	"github.com/WessleyAI/findyourcar/pkg/config"
	"github.com/WessleyAI/findyourcar/pkg/metrics"
	"github.com/WessleyAI/findyourcar/pkg/natsutil"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	reg     *metrics.Registry
	session *browser.Session
	nc      *nats.Conn
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := config.ParseLevel(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// newApp builds the provider client, loader and session. Events go to NATS
// when cfg.NATSURL is set; a NATS outage only disables events.
func newApp(cfg config.Config, logger *slog.Logger) *app {
	a := &app{cfg: cfg, logger: logger, reg: metrics.New()}

	client := vpic.NewClient(cfg.Provider(), logger)
	loader := catalog.NewLoader(client, mock.New(cfg.Seed), catalog.Options{
		Makes:      cfg.Makes,
		MaxPerMake: cfg.MaxPerMake,
		Workers:    cfg.Workers,
	}, logger, a.reg)

	var notifier browser.Notifier = browser.NopNotifier{}
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "findyourcar", logger)
		if err != nil {
			logger.Warn("catalog events disabled", "err", err)
		} else {
			a.nc = nc
			notifier = natsNotifier{nc: nc, subject: cfg.EventSubject}
		}
	}

	delay := cfg.SearchDelay
	if delay == 0 {
		delay = -1
	}
	a.session = browser.NewSession(loader, browser.Options{
		SearchDelay: delay,
		Notifier:    notifier,
		Logger:      logger,
		Metrics:     a.reg,
	})
	return a
}

func (a *app) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn("nats drain", "err", err)
		}
	}
}
