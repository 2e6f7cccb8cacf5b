package browser

import (
	"context"
	"time"
)

// CatalogLoaded is published after every load cycle, successful or not.
type CatalogLoaded struct {
	ID          string    `json:"id"`
	Listings    int       `json:"listings"`
	Makes       int       `json:"makes"` // makes queried
	FailedMakes []string  `json:"failed_makes,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Notifier receives session events.
type Notifier interface {
	CatalogLoaded(ctx context.Context, ev CatalogLoaded) error
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) CatalogLoaded(context.Context, CatalogLoaded) error { return nil }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev CatalogLoaded) error

func (f NotifierFunc) CatalogLoaded(ctx context.Context, ev CatalogLoaded) error { return f(ctx, ev) }
