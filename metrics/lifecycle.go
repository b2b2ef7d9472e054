package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lcx/keel/plugin"
	"github.com/lcx/keel/scan"
)

// LifecycleCollector tracks plugin lifecycle activity for one factory.
type LifecycleCollector struct {
	starts        *prometheus.CounterVec
	startFailures *prometheus.CounterVec
	closes        *prometheus.CounterVec
	running       prometheus.Gauge
	scanDuration  *prometheus.HistogramVec
}

// NewLifecycleCollector creates the collector set and registers it with reg,
// or the default registerer when reg is nil.
func NewLifecycleCollector(reg prometheus.Registerer) *LifecycleCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &LifecycleCollector{
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keel_plugin_starts_total",
			Help: "Plugin records that reached RUNNING.",
		}, []string{"class"}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keel_plugin_start_failures_total",
			Help: "Plugin starts that ended in FAILED.",
		}, []string{"class"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keel_plugin_closes_total",
			Help: "Plugin records closed back to IDLE.",
		}, []string{"class"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keel_plugin_running",
			Help: "Plugin records currently RUNNING.",
		}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keel_scan_source_duration_seconds",
			Help:    "Wall time spent walking one scan source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "result"}),
	}
	reg.MustRegister(c.starts, c.startFailures, c.closes, c.running,
		c.scanDuration)
	return c
}

// Observe attaches the collector to a factory's state transitions and to the
// package-wide scan observer.
func (c *LifecycleCollector) Observe(f *plugin.Factory) {
	f.AddStateListener(plugin.StateListenerFunc(c.onStateChanged))
	scan.SetObserver(c.onScan)
}

func (c *LifecycleCollector) onStateChanged(r *plugin.Record, from, to plugin.State) {
	class := r.Class().String()
	switch to {
	case plugin.StateRunning:
		c.starts.WithLabelValues(class).Inc()
		c.running.Inc()
	case plugin.StateFailed:
		if from == plugin.StateStarting {
			c.startFailures.WithLabelValues(class).Inc()
		}
	case plugin.StateIdle:
		if from == plugin.StateStopping {
			c.closes.WithLabelValues(class).Inc()
		}
	}
	if from == plugin.StateRunning {
		c.running.Dec()
	}
}

func (c *LifecycleCollector) onScan(source string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.scanDuration.WithLabelValues(source, result).Observe(elapsed.Seconds())
}
