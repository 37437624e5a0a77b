// Package density scores every point of a low-dimensional layout by how
// crowded its neighborhood is.
//
// The raw density of a point is the inverse of its mean distance to its k
// nearest neighbors. Raw values are rescaled using two percentiles of their
// own distribution as the effective minimum and maximum, then clipped to
// [0, 1], so a handful of extreme points cannot squash everyone else into a
// narrow band.
package density

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/sanonone/kektorviz/pkg/core/knn"
	"github.com/sanonone/kektorviz/pkg/core/types"
)

// Policy decides what happens when the two percentiles coincide.
type Policy string

const (
	// PolicyNeutral gives every point a score of 0.5.
	PolicyNeutral Policy = "neutral"
	// PolicyFail returns ErrDegenerateDensity.
	PolicyFail Policy = "fail"
)

// NeutralScore is assigned to every point of a degenerate distribution under
// PolicyNeutral.
const NeutralScore = 0.5

// minMeanDistance keeps raw density finite for points whose k neighbors are
// all exact duplicates.
const minMeanDistance = 1e-12

// degenerateTolerance is the relative spread below which the percentile
// window is treated as empty.
const degenerateTolerance = 1e-12

// Config holds the estimator parameters.
type Config struct {
	// K is the number of neighbors averaged per point.
	K int `yaml:"k"`
	// LowPercentile and HighPercentile are fractions in [0, 1]; they are
	// scaled by 100 before the percentile lookup.
	LowPercentile  float64 `yaml:"low_percentile"`
	HighPercentile float64 `yaml:"high_percentile"`
	Degenerate     Policy  `yaml:"degenerate"`
	// Workers bounds neighbor search parallelism for high-dimensional points.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the settings used by the reduce command.
func DefaultConfig() Config {
	return Config{
		K:              20,
		LowPercentile:  0.02,
		HighPercentile: 0.98,
		Degenerate:     PolicyNeutral,
	}
}

// Validate reports configuration errors as ErrInput.
func (c Config) Validate() error {
	if c.K < 1 {
		return types.Inputf("density: k must be at least 1, got %d", c.K)
	}
	if c.LowPercentile < 0 || c.LowPercentile > 1 || c.HighPercentile < 0 || c.HighPercentile > 1 {
		return types.Inputf("density: percentiles must be within [0, 1], got %g and %g", c.LowPercentile, c.HighPercentile)
	}
	if c.LowPercentile >= c.HighPercentile {
		return types.Inputf("density: low percentile %g must be below high percentile %g", c.LowPercentile, c.HighPercentile)
	}
	switch c.Degenerate {
	case PolicyNeutral, PolicyFail:
	default:
		return types.Inputf("density: unknown degenerate policy %q", c.Degenerate)
	}
	return nil
}

// Result carries the per-point scores plus the values they were derived from.
type Result struct {
	// Scores are in [0, 1], one per input point, in input order.
	Scores []float64
	// Raw is 1 / mean kNN distance per point.
	Raw []float64
	// Low and High are the raw-density percentile values used as the
	// normalization window.
	Low, High float64
	// Degenerate is set when Low and High coincided and the neutral policy
	// was applied.
	Degenerate bool
}

// Estimate scores points by local density.
//
// Failures: ErrInput for an invalid cfg, DimensionMismatchError for ragged
// points, InsufficientDataError when len(points) <= cfg.K, and
// ErrDegenerateDensity when the window is empty under PolicyFail.
func Estimate(points [][]float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := types.CheckDims(points); err != nil {
		return nil, err
	}
	if n := len(points); n <= cfg.K {
		return nil, &types.InsufficientDataError{Stage: "density", Points: n, Need: cfg.K + 1}
	}

	dists, err := knn.Distances(points, cfg.K, cfg.Workers)
	if err != nil {
		return nil, err
	}
	raw := RawDensity(dists)

	sorted := slices.Clone(raw)
	slices.Sort(sorted)
	low := Percentile(sorted, cfg.LowPercentile*100)
	high := Percentile(sorted, cfg.HighPercentile*100)

	res := &Result{Raw: raw, Low: low, High: high, Scores: make([]float64, len(raw))}

	spread := high - low
	if spread <= degenerateTolerance*math.Abs(high) {
		if cfg.Degenerate == PolicyFail {
			return nil, fmt.Errorf("%w: percentile window [%g, %g] is empty", types.ErrDegenerateDensity, low, high)
		}
		slog.Warn("[Density] Percentile window is empty, assigning neutral scores",
			"low", low, "high", high, "score", NeutralScore)
		for i := range res.Scores {
			res.Scores[i] = NeutralScore
		}
		res.Degenerate = true
		return res, nil
	}

	for i, r := range raw {
		res.Scores[i] = Normalize(r, low, high)
	}
	return res, nil
}

// RawDensity converts per-point neighbor distances to 1 / mean distance.
func RawDensity(dists [][]float64) []float64 {
	raw := make([]float64, len(dists))
	for i, row := range dists {
		var sum float64
		for _, d := range row {
			sum += d
		}
		mean := sum / float64(len(row))
		raw[i] = 1 / max(mean, minMeanDistance)
	}
	return raw
}

// Normalize maps v from the window [low, high] to [0, 1], clipping values
// outside the window. high must be greater than low.
func Normalize(v, low, high float64) float64 {
	s := (v - low) / (high - low)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Percentile returns the p-th percentile (p in [0, 100]) of an ascending
// slice, interpolating linearly between the two closest ranks. This is the
// default method of NumPy's percentile, so windows match the values a
// Python notebook computes on the same data.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
