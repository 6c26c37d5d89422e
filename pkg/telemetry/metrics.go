// Package telemetry exports run metrics and per-pixel diagnostics
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters updated during a render. A nil *Metrics is valid
// and records nothing
type Metrics struct {
	rays      *prometheus.CounterVec
	invalid   prometheus.Counter
	fallbacks prometheus.Counter
	blocks    *prometheus.CounterVec
	steps     prometheus.Histogram
}

// NewMetrics registers the render metrics on reg. It panics if they are
// already registered there
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rays: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerr_rays_total",
			Help: "Rays traced, by terminal status",
		}, []string{"status"}),
		invalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "kerr_invalid_rays_total",
			Help: "Rays abandoned after a numerical degeneracy",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kerr_fallback_samples_total",
			Help: "Ray samples that used fallback plasma",
		}),
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerr_blocks_total",
			Help: "Image blocks rendered, by refinement level",
		}, []string{"level"}),
		steps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kerr_geodesic_steps",
			Help:    "Accepted integration steps per ray",
			Buckets: prometheus.ExponentialBuckets(16, 2, 12),
		}),
	}
}

// ObserveRay records one traced ray
func (m *Metrics) ObserveRay(status string, steps int, invalid bool) {
	if m == nil {
		return
	}
	m.rays.WithLabelValues(status).Inc()
	m.steps.Observe(float64(steps))
	if invalid {
		m.invalid.Inc()
	}
}

// AddFallbacks records samples that used fallback plasma
func (m *Metrics) AddFallbacks(n int) {
	if m == nil || n == 0 {
		return
	}
	m.fallbacks.Add(float64(n))
}

// AddBlocks records n blocks rendered at a level
func (m *Metrics) AddBlocks(level, n int) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(strconv.Itoa(level)).Add(float64(n))
}
