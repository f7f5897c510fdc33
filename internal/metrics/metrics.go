// Package metrics holds the Prometheus collectors shared by both poller
// designs. Collectors are registered with the default registry on init, and
// are exposed by the internal server at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pollphase"
	subsystem = "poller"
)

var HistogramBuckets = []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

var Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystem,
	Name:      "ticks_total",
	Help:      "Number of poll operation invocations, by poller design and phase",
}, []string{"design", "phase"})

var Failures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystem,
	Name:      "failures_total",
	Help:      "Number of poll operation invocations that failed or panicked",
}, []string{"design"})

var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystem,
	Name:      "transitions_total",
	Help:      "Number of completed phase transitions",
}, []string{"from", "to"})

var ActiveLoops = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: subsystem,
	Name:      "active_loops",
	Help:      "Number of background loops that have been spawned and not yet exited",
}, []string{"design"})

var TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: subsystem,
	Name:      "tick_duration_seconds",
	Help:      "Wall time taken by a single poll operation invocation",
	Buckets:   HistogramBuckets,
}, []string{"design"})

// ObserveTick records a single tick outcome.
func ObserveTick(design, phase string, taken time.Duration, failed bool) {
	Ticks.WithLabelValues(design, phase).Inc()
	TickDuration.WithLabelValues(design).Observe(float64(taken) / float64(time.Second))
	if failed {
		Failures.WithLabelValues(design).Inc()
	}
}

// ObserveTransition records a completed phase transition.
func ObserveTransition(from, to string) {
	Transitions.WithLabelValues(from, to).Inc()
}

// LoopStarted increments the active loop gauge. It must be paired with
// LoopStopped.
func LoopStarted(design string) {
	ActiveLoops.WithLabelValues(design).Inc()
}

// LoopStopped decrements the active loop gauge.
func LoopStopped(design string) {
	ActiveLoops.WithLabelValues(design).Dec()
}
