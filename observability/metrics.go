package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records counters and durations for session activity.
// Label values are passed as alternating key/value pairs.
type Metrics interface {
	IncCounter(name string, labels ...string)
	ObserveDuration(name string, d time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) IncCounter(string, ...string)          {}
func (NopMetrics) ObserveDuration(string, time.Duration) {}

// counterLabels maps each counter metric to its label names. Counters not
// listed here carry no labels.
var counterLabels = map[string][]string{
	MetricIncidents: {"kind"},
	MetricAlerts:    {"kind"},
}

// PrometheusMetrics implements Metrics on top of a prometheus Registerer.
// All standard metric names are registered eagerly; unknown names are
// silently dropped so callers never need to check registration state.
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]prometheus.Histogram
}

func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]prometheus.Histogram),
	}
	counterNames := []string{
		MetricPagesRendered,
		MetricPagesSkipped,
		MetricIncidents,
		MetricAlerts,
		MetricFallbacks,
		MetricSessionsOpen,
	}
	for _, name := range counterNames {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name),
			Help: "viewkit counter " + name,
		}, counterLabels[name])
		if err := reg.Register(vec); err != nil {
			return nil, err
		}
		m.counters[name] = vec
	}
	histogramNames := []string{MetricLoadTime, MetricRasterTime}
	for _, name := range histogramNames {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    promName(name),
			Help:    "viewkit duration " + name + " (seconds)",
			Buckets: prometheus.DefBuckets,
		})
		if err := reg.Register(h); err != nil {
			return nil, err
		}
		m.histograms[name] = h
	}
	return m, nil
}

func (m *PrometheusMetrics) IncCounter(name string, labels ...string) {
	vec, ok := m.counters[name]
	if !ok {
		return
	}
	want := counterLabels[name]
	values := make([]string, len(want))
	for i, key := range want {
		for j := 0; j+1 < len(labels); j += 2 {
			if labels[j] == key {
				values[i] = labels[j+1]
			}
		}
	}
	vec.WithLabelValues(values...).Inc()
}

func (m *PrometheusMetrics) ObserveDuration(name string, d time.Duration) {
	h, ok := m.histograms[name]
	if !ok {
		return
	}
	h.Observe(d.Seconds())
}

// promName converts a dotted metric name to prometheus form.
func promName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
