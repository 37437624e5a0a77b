// Package metrics defines the Prometheus collectors of a pipeline run.
//
// Batch runs have no scrape endpoint, so the collectors are written to a
// node_exporter textfile at the end of the run (see WriteTextfile).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every kektorviz collector. It is separate from the default
// registry so the textfile only carries pipeline metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// StageDuration measures how long each stage took.
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorviz_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"stage"},
	)

	// StageErrors counts failed stages by error class.
	StageErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorviz_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "class"},
	)

	// PointsProcessed counts rows that went through a stage.
	PointsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorviz_points_processed_total",
			Help: "Total number of points processed per stage",
		},
		[]string{"stage"},
	)

	// DensityClamped tracks how many points ended at each end of the
	// density window in the last run.
	DensityClamped = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kektorviz_density_clamped_points",
			Help: "Points clamped to the low or high end of the density window",
		},
		[]string{"end"},
	)

	// ProjectionLoss is the final optimization loss of the last reduction.
	ProjectionLoss = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektorviz_projection_loss",
			Help: "Objective value at the last iteration of the projector",
		},
	)
)

// WriteTextfile writes the current values of all collectors to path in the
// Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
