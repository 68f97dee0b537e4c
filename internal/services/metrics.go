package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheLookups counts prompt cache lookups by result: hit, miss or error.
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_cache_lookups_total",
			Help: "Prompt cache lookups by result.",
		},
		[]string{"result"},
	)

	// upstreamDuration observes workflow call latency. Generations take
	// minutes, so buckets extend well past the HTTP defaults.
	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_upstream_duration_seconds",
			Help:    "Duration of workflow invocations in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 600},
		},
	)

	// generationRequests counts finished generations by outcome:
	// cached, generated, non_animation or error.
	generationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Generation requests by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, upstreamDuration, generationRequests)
}
