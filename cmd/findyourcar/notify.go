package main

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/pkg/natsutil"
)

// natsNotifier publishes session events as JSON on a NATS subject.
type natsNotifier struct {
	nc      *nats.Conn
	subject string
}

func (n natsNotifier) CatalogLoaded(ctx context.Context, ev browser.CatalogLoaded) error {
	return natsutil.Publish(ctx, n.nc, n.subject, ev)
}
