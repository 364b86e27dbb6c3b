// Package metrics registers the Prometheus instruments for the match
// orchestrator. Counters are labeled by analysis phase.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "resume_match"
	subsystem = "resolver"
)

var (
	// CacheHits counts resolves served from the object cache.
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_hits_total",
		Help:      "Number of resolves served from the object cache.",
	}, []string{"phase"})

	// CacheMisses counts resolves that fell through to compute.
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_misses_total",
		Help:      "Number of resolves that fell through to the compute provider.",
	}, []string{"phase"})

	// ComputeFailures counts compute calls that returned a typed failure.
	ComputeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "compute_failures_total",
		Help:      "Number of compute provider calls that failed.",
	}, []string{"phase"})

	// SharedResolves counts resolves deduplicated by single-flight.
	SharedResolves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "shared_resolves_total",
		Help:      "Number of resolves that shared an in-flight computation.",
	}, []string{"phase"})

	// InFlight tracks currently running batch item resolutions.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "in_flight_items",
		Help:      "Number of batch items currently being resolved.",
	})
)

func init() {
	prometheus.MustRegister(
		CacheHits,
		CacheMisses,
		ComputeFailures,
		SharedResolves,
		InFlight,
	)
}
