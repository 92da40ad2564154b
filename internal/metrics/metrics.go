// Package metrics defines the controller's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BranchOperations counts engine operations by name and outcome.
	BranchOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hovel_branch_operations_total",
		Help: "Branch engine operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// BuildDuration observes background build-and-start job durations.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hovel_build_duration_seconds",
		Help:    "Duration of background build-and-start jobs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// BuildsInFlight gauges currently running background builds.
	BuildsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hovel_builds_in_flight",
		Help: "Background build-and-start jobs currently running.",
	})

	// BranchesRegistered gauges the number of registered branches.
	BranchesRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hovel_branches_registered",
		Help: "Branches currently registered.",
	})
)

// Observe records one engine operation outcome.
func Observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	BranchOperations.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
