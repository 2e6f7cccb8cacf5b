// Package metrics is a small Prometheus-compatible registry for the handful
// of series findyourcar exports: load and search counters, view and catalog
// size gauges, the load duration histogram and per-make provider errors.
// Handler serves them in the text exposition format at /metrics.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LoadBuckets suit catalog loads: nine provider round trips behind a rate
// limiter, bounded by the per-request timeout.
var LoadBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge holds the latest value set.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.observe(time.Since(t).Seconds())
}

func (h *Histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
		}
	}
}

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// family is every series sharing one metric name. Unlabelled metrics have a
// single child under the empty label value.
type family struct {
	name, help string
	kind       kind
	label      string
	buckets    []float64

	mu       sync.Mutex
	children map[string]any
}

func (f *family) child(value string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.children[value]; ok {
		return m
	}
	var m any
	switch f.kind {
	case kindCounter:
		m = &Counter{}
	case kindGauge:
		m = &Gauge{}
	case kindHistogram:
		m = &Histogram{bounds: f.buckets, counts: make([]uint64, len(f.buckets))}
	}
	f.children[value] = m
	return m
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	order    []*family
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// family returns the named family, creating it on first use. Asking for an
// existing name with a different kind is a programming error.
func (r *Registry) family(name, help string, k kind, label string, buckets []float64) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[name]; ok {
		if f.kind != k {
			panic(fmt.Sprintf("metrics: %s registered as %s, requested as %s", name, f.kind, k))
		}
		return f
	}
	f := &family{name: name, help: help, kind: k, label: label, buckets: buckets, children: make(map[string]any)}
	r.families[name] = f
	r.order = append(r.order, f)
	return f
}

// Counter returns the unlabelled counter called name.
func (r *Registry) Counter(name, help string) *Counter {
	return r.family(name, help, kindCounter, "", nil).child("").(*Counter)
}

// CounterVec returns a lookup for counters under name that differ by the
// value of label.
func (r *Registry) CounterVec(name, help, label string) func(value string) *Counter {
	f := r.family(name, help, kindCounter, label, nil)
	return func(value string) *Counter { return f.child(value).(*Counter) }
}

// Gauge returns the unlabelled gauge called name.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.family(name, help, kindGauge, "", nil).child("").(*Gauge)
}

// Histogram returns the histogram called name. nil buckets means LoadBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = LoadBuckets
	}
	b := slices.Clone(buckets)
	slices.Sort(b)
	return r.family(name, help, kindHistogram, "", b).child("").(*Histogram)
}

// Render returns every family in the text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	fams := slices.Clone(r.order)
	r.mu.Unlock()

	var b strings.Builder
	for _, f := range fams {
		f.write(&b)
	}
	return b.String()
}

func (f *family) write(w io.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.help != "" {
		fmt.Fprintf(w, "# HELP %s %s\n", f.name, f.help)
	}
	fmt.Fprintf(w, "# TYPE %s %s\n", f.name, f.kind)

	values := make([]string, 0, len(f.children))
	for v := range f.children {
		values = append(values, v)
	}
	slices.Sort(values)
	for _, v := range values {
		var pair string
		if f.label != "" {
			pair = fmt.Sprintf("%s=%q", f.label, v)
		}
		switch m := f.children[v].(type) {
		case *Counter:
			fmt.Fprintf(w, "%s%s %d\n", f.name, braces(pair), m.Value())
		case *Gauge:
			fmt.Fprintf(w, "%s%s %d\n", f.name, braces(pair), m.Value())
		case *Histogram:
			m.write(w, f.name, pair)
		}
	}
}

func (h *Histogram) write(w io.Writer, name, pair string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sep := ""
	if pair != "" {
		sep = ","
	}
	for i, bound := range h.bounds {
		fmt.Fprintf(w, "%s_bucket{%s%sle=\"%g\"} %d\n", name, pair, sep, bound, h.counts[i])
	}
	fmt.Fprintf(w, "%s_bucket{%s%sle=\"+Inf\"} %d\n", name, pair, sep, h.total)
	fmt.Fprintf(w, "%s_sum%s %g\n", name, braces(pair), h.sum)
	fmt.Fprintf(w, "%s_count%s %d\n", name, braces(pair), h.total)
}

func braces(pair string) string {
	if pair == "" {
		return ""
	}
	return "{" + pair + "}"
}

// Handler serves the registry for Prometheus scrapes.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		io.WriteString(w, r.Render())
	})
}
