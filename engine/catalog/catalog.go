// Package catalog builds the full listing dataset: one provider query per
// allowed make, capped, merged with synthesized attributes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/engine/mock"
	"github.com/WessleyAI/findyourcar/engine/vpic"
	"github.com/WessleyAI/findyourcar/pkg/fn"
	"github.com/WessleyAI/findyourcar/pkg/metrics"
)

// ModelSource looks up the models a make sells. *vpic.Client implements it.
type ModelSource interface {
	ModelsForMake(ctx context.Context, mk string) fn.Result[[]vpic.Model]
}

// Options controls a Loader.
type Options struct {
	Makes      []string
	MaxPerMake int
	// Workers bounds concurrent provider requests; 1 fetches sequentially.
	Workers int
}

// DefaultOptions returns the allowed makes, the per-make cap and three workers.
func DefaultOptions() Options {
	return Options{
		Makes:      domain.AllowedMakes,
		MaxPerMake: domain.MaxModelsPerMake,
		Workers:    3,
	}
}

// MakeFailure records a make whose models could not be fetched.
type MakeFailure struct {
	Make string
	Err  error
}

// Catalog is the result of one load cycle.
type Catalog struct {
	// Makes are the makes that were queried, in request order.
	Makes    []string
	Listings []domain.Listing
	Failed   []MakeFailure
	LoadedAt time.Time
}

// FailedMakes lists the makes that contributed nothing because of an error.
func (c Catalog) FailedMakes() []string {
	return fn.Map(c.Failed, func(f MakeFailure) string { return f.Make })
}

// Loader builds catalogs.
type Loader struct {
	src    ModelSource
	gen    *mock.Generator
	opts   Options
	logger *slog.Logger

	mLoads      *metrics.Counter
	mListings   *metrics.Gauge
	mDuration   *metrics.Histogram
	mMakeErrors func(string) *metrics.Counter
}

// NewLoader creates a Loader. reg may be nil.
func NewLoader(src ModelSource, gen *mock.Generator, opts Options, logger *slog.Logger, reg *metrics.Registry) *Loader {
	def := DefaultOptions()
	if len(opts.Makes) == 0 {
		opts.Makes = def.Makes
	}
	if opts.MaxPerMake <= 0 {
		opts.MaxPerMake = def.MaxPerMake
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Loader{
		src:         src,
		gen:         gen,
		opts:        opts,
		logger:      logger,
		mLoads:      reg.Counter("findyourcar_catalog_loads_total", "Completed catalog loads"),
		mListings:   reg.Gauge("findyourcar_catalog_listings", "Listings in the last loaded catalog"),
		mDuration:   reg.Histogram("findyourcar_catalog_load_duration_seconds", "Catalog load duration", nil),
		mMakeErrors: reg.CounterVec("findyourcar_provider_errors_total", "Provider failures by make", "make"),
	}
}

// Load fetches every configured make and returns a fresh catalog. Listings
// are ordered by make enumeration order, then provider order, no matter which
// request finishes first. A failing make is recorded in Catalog.Failed and the
// rest carry on; only when every make fails does Load return ErrNoListings.
// When some makes were turned away because the provider is unavailable, the
// partial catalog is returned with ErrCatalogDegraded. Cancelling ctx aborts
// the load.
func (l *Loader) Load(ctx context.Context) (Catalog, error) {
	ctx, span := otel.Tracer("engine/catalog").Start(ctx, "catalog.Load")
	defer span.End()
	start := time.Now()

	fetch := fn.TracedStage("catalog.fetch_make", fn.Stage[string, []domain.Listing](l.fetchMake),
		func(m string) attribute.KeyValue { return attribute.String("make", m) })

	results := fn.ParMapResult(l.opts.Makes, l.opts.Workers, func(m string) fn.Result[[]domain.Listing] {
		return fetch(ctx, m)
	})

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Catalog{}, err
	}

	cat := Catalog{Makes: slices.Clone(l.opts.Makes), Listings: []domain.Listing{}, LoadedAt: time.Now().UTC()}
	for i, r := range results {
		listings, err := r.Unwrap()
		if err != nil {
			mk := l.opts.Makes[i]
			l.logger.Warn("catalog: make failed", "make", mk, "err", err)
			l.mMakeErrors(mk).Inc()
			cat.Failed = append(cat.Failed, MakeFailure{Make: mk, Err: err})
			continue
		}
		cat.Listings = append(cat.Listings, listings...)
	}

	l.mDuration.Since(start)
	l.logger.Info("catalog loaded",
		"listings", len(cat.Listings),
		"failed_makes", len(cat.Failed),
		"duration", time.Since(start),
	)
	span.SetAttributes(
		attribute.Int("catalog.listings", len(cat.Listings)),
		attribute.Int("catalog.failed_makes", len(cat.Failed)),
	)

	if len(l.opts.Makes) > 0 && len(cat.Failed) == len(l.opts.Makes) {
		err := fmt.Errorf("%w: %w", domain.ErrNoListings, errors.Join(fn.Map(cat.Failed, func(f MakeFailure) error { return f.Err })...))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cat, err
	}
	if unavailable := fn.Filter(cat.Failed, func(f MakeFailure) bool {
		return errors.Is(f.Err, domain.ErrProviderUnavailable)
	}); len(unavailable) > 0 {
		err := fmt.Errorf("%w: %d of %d makes: %w", domain.ErrCatalogDegraded,
			len(unavailable), len(l.opts.Makes), unavailable[0].Err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cat, err
	}

	l.mLoads.Inc()
	l.mListings.Set(int64(len(cat.Listings)))
	return cat, nil
}

// fetchMake turns the first MaxPerMake provider models of one make into listings.
func (l *Loader) fetchMake(ctx context.Context, mk string) fn.Result[[]domain.Listing] {
	models, err := l.src.ModelsForMake(ctx, mk).Unwrap()
	if err != nil {
		return fn.Err[[]domain.Listing](err)
	}
	return fn.Ok(fn.Map(fn.Take(models, l.opts.MaxPerMake), func(m vpic.Model) domain.Listing {
		return l.listing(mk, m)
	}))
}

func (l *Loader) listing(mk string, m vpic.Model) domain.Listing {
	attrs := l.gen.Attributes()
	return domain.Listing{
		Make:      m.MakeName,
		Model:     m.ModelName,
		Price:     attrs.Price,
		Mileage:   attrs.Mileage,
		BodyType:  attrs.BodyType,
		ImagePath: domain.ImagePath(mk, m.ModelName),
	}
}
