// Package metrics is a small Prometheus-compatible registry built on the
// standard library. Counters, gauges, and histograms are registered by
// name, optionally with labels baked into the name via WithLabels, and
// rendered in the text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets covers request latencies from 5ms to 60s.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(d int64)  { c.n.Add(d) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge is a value that can move in both directions.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram tracks a distribution over fixed, sorted buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

// Observe records one value. Each observation lands in the first bucket
// whose bound is >= v; Render accumulates the counts cumulatively.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			return
		}
	}
}

// Since observes the elapsed seconds since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (counts []uint64, sum float64, total uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return counts, h.sum, h.total
}

// family groups every labeled series registered under one base name.
type family struct {
	typ    string
	help   string
	series []string // full names incl. labels, insertion order
}

// Registry holds named metrics and renders them for scraping.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	families   map[string]*family
	order      []string // base names, insertion order
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		families:   make(map[string]*family),
	}
}

func (r *Registry) register(name, typ, help string) {
	base := baseName(name)
	f, ok := r.families[base]
	if !ok {
		f = &family{typ: typ, help: help}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	f.series = append(f.series, name)
}

// Counter returns the counter registered under name, creating it on first
// use. Distinct label sets are distinct names; see WithLabels.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns the gauge registered under name, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns the histogram registered under name, creating it with
// the given buckets on first use. Nil buckets means DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	bounds := make([]float64, len(buckets))
	copy(bounds, buckets)
	sort.Float64s(bounds)
	h := &Histogram{bounds: bounds, counts: make([]uint64, len(bounds))}
	r.histograms[name] = h
	r.register(name, "histogram", help)
	return h
}

// WithLabels bakes label pairs into a metric name:
// WithLabels("requests_total", "route", "/chat") => `requests_total{route="/chat"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i]
	}
	return name
}

// labelsOf returns the label body of a series name, without braces.
func labelsOf(name string) string {
	i := strings.IndexByte(name, '{')
	if i == -1 {
		return ""
	}
	return name[i+1 : len(name)-1]
}

// Render produces the Prometheus text exposition format for all metrics,
// families in registration order, series sorted within a family.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.typ)

		series := make([]string, len(f.series))
		copy(series, f.series)
		sort.Strings(series)

		for _, name := range series {
			switch f.typ {
			case "counter":
				fmt.Fprintf(&b, "%s %d\n", name, r.counters[name].Value())
			case "gauge":
				fmt.Fprintf(&b, "%s %d\n", name, r.gauges[name].Value())
			case "histogram":
				r.renderHistogram(&b, base, name)
			}
		}
	}
	return b.String()
}

func (r *Registry) renderHistogram(b *strings.Builder, base, name string) {
	h := r.histograms[name]
	counts, sum, total := h.snapshot()
	labels := labelsOf(name)

	extra := ""
	if labels != "" {
		extra = "," + labels
	}
	var cum uint64
	for i, bound := range h.bounds {
		cum += counts[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s} %d\n", base, bound, extra, cum)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, extra, total)

	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, suffix, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, suffix, total)
}

// Handler serves the rendered metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
