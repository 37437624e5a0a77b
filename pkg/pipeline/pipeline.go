// Package pipeline sequences the stages that turn an embedded table into a
// density-annotated low-dimensional layout: Projector, then density
// estimation on the new coordinates.
package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorviz/pkg/core/types"
	"github.com/sanonone/kektorviz/pkg/density"
	"github.com/sanonone/kektorviz/pkg/metrics"
	"github.com/sanonone/kektorviz/pkg/projector"
	"github.com/sanonone/kektorviz/pkg/table"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Report describes a successful run.
type Report struct {
	RunID          string          `json:"run_id"`
	Rows           int             `json:"rows"`
	InputDims      int             `json:"input_dims"`
	Dims           int             `json:"dims"`
	ProjectionLoss float64         `json:"projection_loss"`
	Stages         []StageTiming   `json:"stages"`
	Density        density.Summary `json:"density"`
}

// Run projects the single vector column of tbl to cfg.Projector.Dims axes,
// replaces it with coordinate columns, scores every row by local density
// and returns the augmented copy. tbl itself is never modified.
//
// Stage errors are returned unchanged, so callers can match them with
// errors.Is and errors.As against the types package. No table is returned
// on error.
func Run(tbl *table.Table, cfg Config) (*table.Table, *Report, error) {
	report := &Report{RunID: uuid.NewString(), Rows: tbl.Len(), Dims: cfg.Projector.Dims}
	log := slog.With("run_id", report.RunID)

	vec, err := validate(tbl, cfg)
	if err != nil {
		return nil, nil, err
	}
	report.InputDims = vec.Dim()
	log.Info("[Pipeline] Starting run", "rows", tbl.Len(), "vector_column", vec.Name, "input_dims", vec.Dim(), "dims", cfg.Projector.Dims)

	out := tbl.Clone()

	var reduced *projector.Result
	err = timeStage(report, "projector", tbl.Len(), func() error {
		var err error
		reduced, err = projector.Reduce(vec.Vectors, cfg.Projector)
		return err
	})
	if err != nil {
		log.Error("[Pipeline] Projection failed", "error", err)
		return nil, nil, err
	}
	report.ProjectionLoss = reduced.Loss
	metrics.ProjectionLoss.Set(reduced.Loss)

	if err := out.Drop(vec.Name); err != nil {
		return nil, nil, err
	}
	for axis := 0; axis < cfg.Projector.Dims; axis++ {
		col := make([]float64, len(reduced.Coords))
		for i, c := range reduced.Coords {
			col[i] = c[axis]
		}
		if err := out.AddFloats(cfg.CoordName(axis+1), col); err != nil {
			return nil, nil, err
		}
	}

	var scored *density.Result
	err = timeStage(report, "density", tbl.Len(), func() error {
		var err error
		scored, err = density.Estimate(reduced.Coords, cfg.Density)
		return err
	})
	if err != nil {
		log.Error("[Pipeline] Density estimation failed", "error", err)
		return nil, nil, err
	}
	if err := out.AddFloats(cfg.DensityColumn, scored.Scores); err != nil {
		return nil, nil, err
	}

	report.Density = scored.Summary()
	metrics.DensityClamped.WithLabelValues("low").Set(float64(report.Density.ClampedLow))
	metrics.DensityClamped.WithLabelValues("high").Set(float64(report.Density.ClampedHigh))

	log.Info("[Pipeline] Run complete",
		"rows", out.Len(),
		"density_min", report.Density.Min,
		"density_max", report.Density.Max,
		"density_mean", report.Density.Mean)
	return out, report, nil
}

// validate checks the column contract before any work starts: exactly one
// vector column, and no existing column that the outputs would collide with.
func validate(tbl *table.Table, cfg Config) (*table.Column, error) {
	vecs := tbl.ColumnsOf(table.Vector)
	if len(vecs) != 1 {
		return nil, types.Inputf("pipeline: expected exactly one vector column, found %d", len(vecs))
	}
	if cfg.Projector.Dims < 1 {
		return nil, types.Inputf("pipeline: dims must be at least 1, got %d", cfg.Projector.Dims)
	}
	if cfg.DensityColumn == "" {
		return nil, types.Inputf("pipeline: density column name must not be empty")
	}
	outputs := []string{cfg.DensityColumn}
	for axis := 1; axis <= cfg.Projector.Dims; axis++ {
		outputs = append(outputs, cfg.CoordName(axis))
	}
	for _, name := range outputs {
		if _, exists := tbl.Column(name); exists {
			return nil, types.Inputf("pipeline: input already has a column named %q", name)
		}
	}
	return vecs[0], nil
}

// timeStage runs fn and records its duration in the metrics. On success the
// timing is also appended to report when one is given.
func timeStage(report *Report, stage string, rows int, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		metrics.StageErrors.WithLabelValues(stage, errorClass(err)).Inc()
		return err
	}
	metrics.PointsProcessed.WithLabelValues(stage).Add(float64(rows))
	if report != nil {
		report.Stages = append(report.Stages, StageTiming{Stage: stage, Duration: elapsed})
	}
	return nil
}

// errorClass maps an error onto the taxonomy of the types package for
// metric labels.
func errorClass(err error) string {
	switch {
	case errors.Is(err, types.ErrParse):
		return "parse"
	case errors.Is(err, types.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, types.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, types.ErrDegenerateDensity):
		return "degenerate_density"
	case errors.Is(err, types.ErrInput):
		return "input"
	}
	return "other"
}
