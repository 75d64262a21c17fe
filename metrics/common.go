// Package metrics defines the prometheus collectors shared by vreconnect
// components. All collectors are registered with the default registry under
// Namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the prefix of all metric names.
const Namespace = "vreconnect"

// DurationBuckets spans 10ms to roughly 45 minutes, which covers sessions
// over trees from a few leaves to hundreds of millions.
var DurationBuckets = prometheus.ExponentialBuckets(0.01, 4, 12)

// NewCounter creates a counter vector.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts(opts(name, subsystem, help)), labels)
}

// NewGauge creates a gauge vector.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts(opts(name, subsystem, help)), labels)
}

// NewHistogramWithBuckets creates a histogram vector with custom buckets.
func NewHistogramWithBuckets(
	name, subsystem, help string,
	labels []string,
	buckets []float64,
) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func opts(name, subsystem, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
}
