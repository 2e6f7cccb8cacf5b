// Package browser holds the catalog browser's application state. A Session
// owns the loaded dataset, the active search scope and the price window, and
// hands presenters immutable snapshots of the visible cards.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/WessleyAI/findyourcar/engine/catalog"
	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/engine/query"
	"github.com/WessleyAI/findyourcar/engine/render"
	"github.com/WessleyAI/findyourcar/pkg/metrics"
)

// DefaultSearchDelay is the pause between submitting a search and showing
// its results.
const DefaultSearchDelay = time.Second

// LoadFailedBanner is shown when a load produced no listings at all.
const LoadFailedBanner = "We couldn't reach the vehicle database. Showing the last results we have."

// DegradedBanner is shown when the provider turned some makes away.
const DegradedBanner = "The vehicle database is partly unavailable. Some makes may be missing."

// Loader produces catalogs. *catalog.Loader implements it.
type Loader interface {
	Load(ctx context.Context) (catalog.Catalog, error)
}

// Options configures a Session. Zero values take defaults; a negative
// SearchDelay disables the delay.
type Options struct {
	SearchDelay time.Duration
	Notifier    Notifier
	Logger      *slog.Logger
	Metrics     *metrics.Registry
}

// Snapshot is a point-in-time copy of what the page shows.
type Snapshot struct {
	Query       string            `json:"query"`
	Title       string            `json:"title"`
	PriceRange  domain.PriceRange `json:"price_range"`
	PriceLabel  string            `json:"price_label"`
	Cards       []render.Card     `json:"cards"`
	Count       int               `json:"count"`
	Total       int               `json:"total"`
	Loading     bool              `json:"loading"`
	Ready       bool              `json:"ready"`
	Empty       bool              `json:"empty"`
	Banner      string            `json:"banner,omitempty"`
	FailedMakes []string          `json:"failed_makes,omitempty"`
	LoadedAt    time.Time         `json:"loaded_at,omitzero"`
}

// Page converts the snapshot into template data.
func (s Snapshot) Page() render.PageData {
	return render.PageData{
		Query:      s.Query,
		Title:      s.Title,
		PriceLabel: s.PriceLabel,
		MinPrice:   s.PriceRange.Min,
		MaxPrice:   s.PriceRange.Max,
		PriceFloor: domain.PriceFloor,
		PriceCeil:  domain.PriceCeiling,
		Cards:      s.Cards,
		Loading:    s.Loading,
		Empty:      s.Empty,
		Banner:     s.Banner,
	}
}

// Session is the browser state. All methods are safe for concurrent use.
type Session struct {
	loader   Loader
	notifier Notifier
	logger   *slog.Logger
	delay    time.Duration
	loads    singleflight.Group

	mSearches   *metrics.Counter
	mSuperseded *metrics.Counter
	mView       *metrics.Gauge

	mu      sync.Mutex
	all     []domain.Listing
	scope   []domain.Listing
	view    []domain.Listing
	price   domain.PriceRange
	ready   bool
	loading int
	query   string
	title   string
	// scoped is the query the current scope was computed from.
	scoped   string
	banner   string
	failed   []string
	loadedAt time.Time
	gen      uint64
	cancel   context.CancelFunc
}

// NewSession creates an empty, not-yet-ready session.
func NewSession(loader Loader, opts Options) *Session {
	if opts.SearchDelay == 0 {
		opts.SearchDelay = DefaultSearchDelay
	}
	if opts.SearchDelay < 0 {
		opts.SearchDelay = 0
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Session{
		loader:      loader,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		delay:       opts.SearchDelay,
		mSearches:   opts.Metrics.Counter("findyourcar_searches_total", "Searches submitted"),
		mSuperseded: opts.Metrics.Counter("findyourcar_searches_superseded_total", "Searches replaced by a newer one before completing"),
		mView:       opts.Metrics.Gauge("findyourcar_view_size", "Cards currently visible"),
		price:       domain.DefaultPriceRange(),
		title:       render.DefaultSearchTitle,
	}
}

// Load fetches the catalog and makes it the full dataset. Concurrent calls
// share one fetch. When every make fails, or the provider was unavailable for
// some of them, the previous dataset stays and the session shows a banner; the
// error is still returned. A degraded catalog is only adopted when there is
// nothing to keep.
func (s *Session) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (any, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Session) load(ctx context.Context) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	start := time.Now()
	cat, err := s.loader.Load(ctx)

	s.mu.Lock()
	s.loading--
	switch {
	case err == nil:
		s.all = cat.Listings
		s.banner = ""
		s.failed = cat.FailedMakes()
		s.loadedAt = cat.LoadedAt
		s.ready = true
		s.scope = query.Scope(s.all, query.Parse(s.query))
		s.scoped = s.query
		s.refresh()
	case errors.Is(err, domain.ErrNoListings):
		s.banner = LoadFailedBanner
		s.failed = cat.FailedMakes()
		s.ready = true
		s.refresh()
	case errors.Is(err, domain.ErrCatalogDegraded):
		s.banner = DegradedBanner
		s.failed = cat.FailedMakes()
		if len(s.all) == 0 {
			s.all = cat.Listings
			s.loadedAt = cat.LoadedAt
			s.scope = query.Scope(s.all, query.Parse(s.query))
			s.scoped = s.query
		}
		s.ready = true
		s.refresh()
	default:
		// Cancelled; leave state as it was.
		s.mu.Unlock()
		return err
	}
	ev := CatalogLoaded{
		ID:          uuid.NewString(),
		Listings:    len(cat.Listings),
		Makes:       len(cat.Makes),
		FailedMakes: slices.Clone(s.failed),
		DurationMS:  time.Since(start).Milliseconds(),
		LoadedAt:    time.Now().UTC(),
	}
	s.mu.Unlock()

	if err != nil {
		ev.Error = err.Error()
		s.logger.Warn("catalog load failed, keeping previous listings", "err", err)
	}
	if nerr := s.notifier.CatalogLoaded(ctx, ev); nerr != nil {
		s.logger.Warn("publish catalog event", "err", nerr)
	}
	return err
}

// Search replaces the search scope with the listings matching raw, after the
// configured delay. A newer Search or Reset supersedes a pending one, which
// then returns ErrSearchSuperseded without touching the state. If ctx ends
// first, the query and title of the results still shown come back.
func (s *Session) Search(ctx context.Context, raw string) error {
	s.mSearches.Inc()
	ctx, span := otel.Tracer("engine/browser").Start(ctx, "browser.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", raw))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	gen := s.supersede(cancel)
	s.query = raw
	s.title = render.SearchTitle(raw)
	s.loading++
	s.view = nil
	s.mView.Set(0)
	s.mu.Unlock()

	err := sleep(ctx, s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if gen != s.gen {
		s.mSuperseded.Inc()
		span.SetAttributes(attribute.Bool("search.superseded", true))
		return domain.ErrSearchSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.query, s.title = s.scoped, render.SearchTitle(s.scoped)
		s.refresh()
		return err
	}
	s.scope = query.Scope(s.all, query.Parse(raw))
	s.scoped = raw
	s.refresh()
	span.SetAttributes(attribute.Int("search.results", len(s.view)))
	return nil
}

// UpdatePrice sets the price window and refilters the current scope without
// reloading. Bounds are clamped to [PriceFloor, PriceCeiling] and a minimum
// above the maximum is pulled down to it. It returns the range applied.
func (s *Session) UpdatePrice(lo, hi int) domain.PriceRange {
	pr := domain.PriceRange{Min: lo, Max: hi}.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = pr
	s.refresh()
	return pr
}

// Reset clears the search and price window and reloads the catalog.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.supersede(nil)
	s.query = ""
	s.title = render.DefaultSearchTitle
	s.price = domain.DefaultPriceRange()
	s.scope = s.all
	s.scoped = ""
	s.refresh()
	// Hold loading across the gap before Load takes over so the empty
	// state never flashes.
	s.loading++
	s.mu.Unlock()

	err := s.Load(ctx)

	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	return err
}

// Snapshot returns a copy of the current presentation state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	loading := s.loading > 0
	return Snapshot{
		Query:       s.query,
		Title:       s.title,
		PriceRange:  s.price,
		PriceLabel:  render.PriceLabel(s.price),
		Cards:       render.Cards(s.view),
		Count:       len(s.view),
		Total:       len(s.all),
		Loading:     loading,
		Ready:       s.ready,
		Empty:       s.ready && !loading && len(s.view) == 0,
		Banner:      s.banner,
		FailedMakes: slices.Clone(s.failed),
		LoadedAt:    s.loadedAt,
	}
}

// supersede cancels any pending search and starts a new generation.
// Caller holds s.mu.
func (s *Session) supersede(cancel context.CancelFunc) uint64 {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.gen++
	return s.gen
}

// refresh recomputes the view. Caller holds s.mu.
func (s *Session) refresh() {
	s.view = query.Apply(s.scope, s.price)
	s.mView.Set(int64(len(s.view)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
