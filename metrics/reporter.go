// Package metrics exposes framework observability through Prometheus. The
// plugin core stays metrics-free; this package attaches from the outside via
// the factory's state listener chain and the scan observer hook.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Policy selects how reported values for one metric aggregate over time.
type Policy int

const (
	PolicyNone Policy = iota
	// PolicySet keeps the most recent value.
	PolicySet
	// PolicySum accumulates a running total.
	PolicySum
	PolicyAvg
	PolicyMax
	PolicyMin
	PolicyMid
	// PolicyStopwatch records a duration sample.
	PolicyStopwatch
	// PolicyHistogram records a distribution sample.
	PolicyHistogram
)

// Value is one reported measurement.
type Value float64

// Dimension labels a measurement, for example the plugin class or the scan
// source that produced it.
type Dimension map[string]string

// Reporter records a named metric value under an aggregation policy with
// optional dimensions.
type Reporter interface {
	Report(name string, value Value, policy Policy, dims Dimension)
}

// PromReporter maps reported values onto Prometheus collectors: PolicySum to
// counters, PolicySet/Max/Min to gauges, PolicyStopwatch and PolicyHistogram
// to histograms. Collectors are created on first report per (name, label
// set) shape and registered with the given registerer.
type PromReporter struct {
	reg        prometheus.Registerer
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromReporter creates a reporter registering collectors with reg.
// A nil reg uses the default registerer.
func NewPromReporter(reg prometheus.Registerer) *PromReporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromReporter{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Report implements Reporter.
func (r *PromReporter) Report(name string, value Value, policy Policy, dims Dimension) {
	labels := labelNames(dims)
	switch policy {
	case PolicySum:
		r.counter(name, labels).With(prometheus.Labels(dims)).Add(float64(value))
	case PolicyStopwatch, PolicyHistogram:
		r.histogram(name, labels).With(prometheus.Labels(dims)).Observe(float64(value))
	default:
		r.gauge(name, labels).With(prometheus.Labels(dims)).Set(float64(value))
	}
}

func (r *PromReporter) counter(name string, labels []string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labels)
	r.reg.MustRegister(c)
	r.counters[name] = c
	return c
}

func (r *PromReporter) gauge(name string, labels []string) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labels)
	r.reg.MustRegister(g)
	r.gauges[name] = g
	return g
}

func (r *PromReporter) histogram(name string, labels []string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name}, labels)
	r.reg.MustRegister(h)
	r.histograms[name] = h
	return h
}

func labelNames(dims Dimension) []string {
	out := make([]string, 0, len(dims))
	for k := range dims {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
