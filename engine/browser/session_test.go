package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/WessleyAI/findyourcar/engine/catalog"
	"github.com/WessleyAI/findyourcar/engine/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func sample() []domain.Listing {
	return []domain.Listing{
		{Make: "TOYOTA", Model: "Corolla", Price: 20000},
		{Make: "TOYOTA", Model: "Camry", Price: 30000},
		{Make: "BMW", Model: "X5", Price: 80000},
		{Make: "BMW", Model: "3 Series", Price: 45000},
		{Make: "AUDI", Model: "A4", Price: 45000},
	}
}

// fakeLoader returns queued results in order, repeating the last one.
type fakeLoader struct {
	mu      sync.Mutex
	results []loadResult
	calls   atomic.Int32
	gate    chan struct{} // if non-nil, Load blocks until closed
	started chan struct{}
}

type loadResult struct {
	cat catalog.Catalog
	err error
}

func (f *fakeLoader) Load(ctx context.Context) (catalog.Catalog, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return catalog.Catalog{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.cat, r.err
}

func okLoader(ls []domain.Listing) *fakeLoader {
	return &fakeLoader{results: []loadResult{{cat: catalog.Catalog{Listings: ls}}}}
}

func titles(s Snapshot) []string {
	out := make([]string, len(s.Cards))
	for i, c := range s.Cards {
		out[i] = c.Title
	}
	return out
}

func newTestSession(l Loader, delay time.Duration, n Notifier) *Session {
	return NewSession(l, Options{SearchDelay: delay, Notifier: n, Logger: quiet})
}

func TestNewSessionIsNotReady(t *testing.T) {
	s := newTestSession(okLoader(nil), -1, nil)
	snap := s.Snapshot()
	if snap.Ready || snap.Empty || snap.Loading {
		t.Fatalf("fresh session should be idle and not ready: %+v", snap)
	}
	if snap.Title != "Search results:" || snap.PriceLabel != "£0 to £100,000" {
		t.Fatalf("unexpected defaults: %+v", snap)
	}
}

func TestLoadShowsAllSortedByPrice(t *testing.T) {
	var (
		mu     sync.Mutex
		events []CatalogLoaded
	)
	n := NotifierFunc(func(_ context.Context, ev CatalogLoaded) error {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	})
	l := okLoader(sample())
	l.results[0].cat.Makes = []string{"toyota", "bmw", "audi"}
	s := newTestSession(l, -1, n)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := s.Snapshot()
	want := []string{"BMW X5", "BMW 3 Series", "AUDI A4", "TOYOTA Camry", "TOYOTA Corolla"}
	if diff := cmp.Diff(want, titles(snap)); diff != "" {
		t.Fatalf("cards (-want +got):\n%s", diff)
	}
	if !snap.Ready || snap.Loading || snap.Empty || snap.Count != 5 || snap.Total != 5 {
		t.Fatalf("unexpected flags: %+v", snap)
	}
	if len(events) != 1 || events[0].Listings != 5 || events[0].Makes != 3 || events[0].ID == "" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestLoadTotalFailureKeepsPreviousData(t *testing.T) {
	l := &fakeLoader{results: []loadResult{
		{cat: catalog.Catalog{Listings: sample()}},
		{
			cat: catalog.Catalog{Failed: []catalog.MakeFailure{{Make: "toyota", Err: errors.New("down")}}},
			err: domain.ErrNoListings,
		},
	}}
	s := newTestSession(l, -1, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	err := s.Load(context.Background())
	if !errors.Is(err, domain.ErrNoListings) {
		t.Fatalf("expected ErrNoListings, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Count != 5 || snap.Banner != LoadFailedBanner {
		t.Fatalf("previous data should stay with a banner: %+v", snap)
	}
	if diff := cmp.Diff([]string{"toyota"}, snap.FailedMakes); diff != "" {
		t.Fatalf("failed makes (-want +got):\n%s", diff)
	}
}

func TestLoadEventCountsQueriedMakes(t *testing.T) {
	var got CatalogLoaded
	n := NotifierFunc(func(_ context.Context, ev CatalogLoaded) error {
		got = ev
		return nil
	})
	l := okLoader([]domain.Listing{
		{Make: "MERCEDES-BENZ", Model: "C-Class", Price: 40000},
		{Make: "MERCEDES-AMG", Model: "GT", Price: 90000},
	})
	l.results[0].cat.Makes = []string{"mercedes"}
	s := newTestSession(l, -1, n)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Makes != 1 || got.Listings != 2 {
		t.Fatalf("expected one queried make with two listings, got %+v", got)
	}
}

func TestLoadDegradedKeepsPreviousData(t *testing.T) {
	unavailable := fmt.Errorf("%w: vpic audi: %w", domain.ErrCatalogDegraded, domain.ErrProviderUnavailable)
	l := &fakeLoader{results: []loadResult{
		{cat: catalog.Catalog{Listings: sample()}},
		{
			cat: catalog.Catalog{
				Listings: sample()[:1],
				Failed:   []catalog.MakeFailure{{Make: "audi", Err: unavailable}},
			},
			err: unavailable,
		},
	}}
	s := newTestSession(l, -1, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if err := s.Load(context.Background()); !errors.Is(err, domain.ErrCatalogDegraded) {
		t.Fatalf("expected ErrCatalogDegraded, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Count != 5 || snap.Total != 5 || snap.Banner != DegradedBanner {
		t.Fatalf("degraded reload should keep the full dataset with a banner: %+v", snap)
	}
	if diff := cmp.Diff([]string{"audi"}, snap.FailedMakes); diff != "" {
		t.Fatalf("failed makes (-want +got):\n%s", diff)
	}
}

func TestLoadDegradedFirstLoadShowsWhatArrived(t *testing.T) {
	l := &fakeLoader{results: []loadResult{{
		cat: catalog.Catalog{Listings: sample()[:2]},
		err: domain.ErrCatalogDegraded,
	}}}
	s := newTestSession(l, -1, nil)
	_ = s.Load(context.Background())
	snap := s.Snapshot()
	if !snap.Ready || snap.Count != 2 || snap.Banner != DegradedBanner {
		t.Fatalf("expected the partial catalog with a banner: %+v", snap)
	}
}

func TestLoadFirstFailureIsEmptyWithBanner(t *testing.T) {
	l := &fakeLoader{results: []loadResult{{err: domain.ErrNoListings}}}
	s := newTestSession(l, -1, nil)
	_ = s.Load(context.Background())
	snap := s.Snapshot()
	if !snap.Ready || !snap.Empty || snap.Banner == "" {
		t.Fatalf("expected ready empty state with banner: %+v", snap)
	}
}

func TestLoadCancelledLeavesStateAlone(t *testing.T) {
	l := okLoader(sample())
	l.gate = make(chan struct{})
	s := newTestSession(l, -1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if snap := s.Snapshot(); snap.Ready || snap.Loading {
		t.Fatalf("state changed by cancelled load: %+v", snap)
	}
}

func TestLoadCoalescesConcurrentCalls(t *testing.T) {
	l := okLoader(sample())
	l.gate = make(chan struct{})
	l.started = make(chan struct{}, 1)
	s := newTestSession(l, -1, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = s.Load(context.Background()) }()
	<-l.started
	if !s.Snapshot().Loading {
		t.Fatal("expected loading while the fetch is in flight")
	}
	for range 4 {
		wg.Add(1)
		go func() { defer wg.Done(); _ = s.Load(context.Background()) }()
	}
	time.Sleep(50 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	if got := l.calls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestReloadHidesEmptyStateUntilDone(t *testing.T) {
	l := &fakeLoader{results: []loadResult{
		{cat: catalog.Catalog{Listings: sample()}},
		{cat: catalog.Catalog{Listings: []domain.Listing{}}},
	}}
	s := newTestSession(l, -1, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	s.UpdatePrice(0, 1000)
	if snap := s.Snapshot(); !snap.Empty {
		t.Fatalf("expected empty view before reload: %+v", snap)
	}

	l.gate = make(chan struct{})
	l.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-l.started
	if snap := s.Snapshot(); !snap.Loading || snap.Empty {
		t.Fatalf("empty state must stay hidden while loading: %+v", snap)
	}

	close(l.gate)
	if err := <-done; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snap := s.Snapshot(); snap.Loading || !snap.Empty || snap.Total != 0 {
		t.Fatalf("expected empty state after reload: %+v", snap)
	}
}

func TestSearchScopesAndTitles(t *testing.T) {
	s := newTestSession(okLoader(sample()), -1, nil)
	_ = s.Load(context.Background())

	if err := s.Search(context.Background(), "bmw"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	snap := s.Snapshot()
	if diff := cmp.Diff([]string{"BMW X5", "BMW 3 Series"}, titles(snap)); diff != "" {
		t.Fatalf("cards (-want +got):\n%s", diff)
	}
	if snap.Title != `Search results for "bmw"` || snap.Query != "bmw" {
		t.Fatalf("unexpected title %q", snap.Title)
	}

	_ = s.Search(context.Background(), "nothing-like-this")
	if snap := s.Snapshot(); !snap.Empty || snap.Count != 0 {
		t.Fatalf("expected empty state: %+v", snap)
	}
}

func TestSearchShowsLoadingAndClearsViewWhilePending(t *testing.T) {
	s := newTestSession(okLoader(sample()), time.Hour, nil)
	_ = s.Load(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Search(ctx, "audi") }()

	waitFor(t, func() bool { return s.Snapshot().Query == "audi" })
	snap := s.Snapshot()
	if !snap.Loading || snap.Empty || snap.Count != 0 {
		t.Fatalf("pending search should show loading only: %+v", snap)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if snap := s.Snapshot(); snap.Loading || snap.Count != 5 {
		t.Fatalf("cancelled search should restore the previous view: %+v", snap)
	}
}

func TestCancelledSearchRestoresQueryAndTitle(t *testing.T) {
	s := newTestSession(okLoader(sample()), 10*time.Millisecond, nil)
	_ = s.Load(context.Background())
	if err := s.Search(context.Background(), "bmw"); err != nil {
		t.Fatalf("Search: %v", err)
	}

	s.delay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Search(ctx, "audi") }()
	waitFor(t, func() bool { return s.Snapshot().Query == "audi" })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Query != "bmw" || snap.Title != `Search results for "bmw"` {
		t.Fatalf("query and title should match the cards still shown: %+v", snap)
	}
	if diff := cmp.Diff([]string{"BMW X5", "BMW 3 Series"}, titles(snap)); diff != "" {
		t.Fatalf("cards (-want +got):\n%s", diff)
	}
}

func TestLaterSearchSupersedesEarlier(t *testing.T) {
	s := newTestSession(okLoader(sample()), time.Hour, nil)
	_ = s.Load(context.Background())

	first := make(chan error, 1)
	go func() { first <- s.Search(context.Background(), "toyota") }()
	waitFor(t, func() bool { return s.Snapshot().Query == "toyota" })

	second := make(chan error, 1)
	go func() { second <- s.Search(context.Background(), "bmw") }()

	if err := <-first; !errors.Is(err, domain.ErrSearchSuperseded) {
		t.Fatalf("expected ErrSearchSuperseded, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Query != "bmw" || !snap.Loading {
		t.Fatalf("second search should be pending: %+v", snap)
	}

	// Reset supersedes the second one as well.
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := <-second; !errors.Is(err, domain.ErrSearchSuperseded) {
		t.Fatalf("expected ErrSearchSuperseded, got %v", err)
	}
	snap = s.Snapshot()
	if snap.Query != "" || snap.Title != "Search results:" || snap.Count != 5 || snap.Loading {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
}

func TestUpdatePriceClampsAndRefilters(t *testing.T) {
	s := newTestSession(okLoader(sample()), -1, nil)
	_ = s.Load(context.Background())
	_ = s.Search(context.Background(), "bmw")

	got := s.UpdatePrice(-500, 50000)
	if got != (domain.PriceRange{Min: 0, Max: 50000}) {
		t.Fatalf("unexpected range %+v", got)
	}
	snap := s.Snapshot()
	if diff := cmp.Diff([]string{"BMW 3 Series"}, titles(snap)); diff != "" {
		t.Fatalf("cards (-want +got):\n%s", diff)
	}
	if snap.PriceLabel != "£0 to £50,000" {
		t.Fatalf("unexpected label %q", snap.PriceLabel)
	}

	got = s.UpdatePrice(90000, 40000)
	if got != (domain.PriceRange{Min: 40000, Max: 40000}) {
		t.Fatalf("min above max should collapse to max, got %+v", got)
	}
	if snap := s.Snapshot(); !snap.Empty {
		t.Fatalf("no BMW at exactly 40000: %+v", snap)
	}

	s.UpdatePrice(45000, 45000)
	if diff := cmp.Diff([]string{"BMW 3 Series"}, titles(s.Snapshot())); diff != "" {
		t.Fatalf("bounds are inclusive (-want +got):\n%s", diff)
	}
}

func TestResetRestoresDefaultsAndReloads(t *testing.T) {
	l := okLoader(sample())
	s := newTestSession(l, -1, nil)
	_ = s.Load(context.Background())
	_ = s.Search(context.Background(), "audi")
	s.UpdatePrice(50000, 60000)

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := s.Snapshot()
	if snap.PriceRange != domain.DefaultPriceRange() || snap.Count != 5 || snap.Query != "" {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
	if got := l.calls.Load(); got != 2 {
		t.Fatalf("expected reset to reload, got %d loads", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestSession(okLoader(sample()), -1, nil)
	_ = s.Load(context.Background())
	snap := s.Snapshot()
	snap.Cards[0].Title = "changed"
	if s.Snapshot().Cards[0].Title == "changed" {
		t.Fatal("snapshot aliases session state")
	}
}

func TestNotifierErrorIsNotFatal(t *testing.T) {
	n := NotifierFunc(func(context.Context, CatalogLoaded) error { return errors.New("nats down") })
	s := newTestSession(okLoader(sample()), -1, n)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("notifier failure leaked into Load: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
