package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opportunitiesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandwichd_opportunities_total",
			Help: "Opportunities detected by the scanner",
		},
		[]string{"kind"},
	)

	bundlesBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_bundles_built_total",
			Help: "Bundles successfully built and signed",
		},
	)

	simulationRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_simulation_rejects_total",
			Help: "Bundles rejected by the simulation gate",
		},
	)

	bundlesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_bundles_submitted_total",
			Help: "Bundles sent to the relay",
		},
	)

	bundlesIncluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_bundles_included_total",
			Help: "Bundles resolved as included in their target block",
		},
	)

	bundlesStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_bundles_stale_total",
			Help: "Bundles whose target block passed without resolution",
		},
	)

	invalidTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandwichd_invalid_transitions_total",
			Help: "Invalid bundle state transitions (indicates a bug)",
		},
	)

	pipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandwichd_pipeline_failures_total",
			Help: "Pipelines aborted before submission",
		},
		[]string{"stage"},
	)
)
