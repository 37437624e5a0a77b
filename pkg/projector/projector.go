// Package projector reduces high-dimensional vectors to a handful of axes
// while preserving neighborhood structure.
//
// The method follows PaCMAP: three families of point pairs are sampled from
// the input (true neighbors, mid-near pairs and far pairs) and a small
// layout is optimized with Adam so that neighbors attract, mid-near pairs
// keep the global arrangement in place, and far pairs repel. A three-phase
// weight schedule moves the emphasis from global to local structure.
package projector

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sanonone/kektorviz/pkg/core/types"
)

// Result is the outcome of one reduction.
type Result struct {
	// Coords has one row of Config.Dims values per input vector, in order.
	Coords [][]float64
	// Loss is the objective value at the last iteration.
	Loss float64
	// Pair counts per family.
	NearPairs, MidNearPairs, FarPairs int
}

// Reduce embeds vectors into cfg.Dims dimensions. The output has the same
// length and order as the input.
//
// Failures: ErrInput for an invalid cfg or zero-length vectors,
// DimensionMismatchError when vector lengths differ (checked before any
// other work), InsufficientDataError when there are fewer than
// cfg.Neighbors+1 vectors.
func Reduce(vectors [][]float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dim, err := types.CheckDims(vectors)
	if err != nil {
		return nil, err
	}
	if n := len(vectors); n < cfg.Neighbors+1 {
		return nil, &types.InsufficientDataError{Stage: "projector", Points: n, Need: cfg.Neighbors + 1}
	}
	if dim == 0 {
		return nil, types.Inputf("projector: vectors must have at least one value")
	}

	start := time.Now()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	x, err := preprocess(vectors, cfg.ApplyPCA)
	if err != nil {
		return nil, err
	}
	slog.Debug("[Projector] Preprocessed input", "points", len(x), "input_dims", dim, "working_dims", len(x[0]))

	ps, err := buildPairs(searchSpace(x, cfg.Distance), cfg, rng)
	if err != nil {
		return nil, err
	}
	slog.Debug("[Projector] Pairs sampled",
		"near", len(ps.near), "mid_near", len(ps.midNear), "far", len(ps.far))

	y, err := initLayout(x, cfg, rng)
	if err != nil {
		return nil, err
	}

	opt := newOptimizer(y, cfg.LearningRate)
	loss := opt.run(ps, cfg.Iterations)

	slog.Info("[Projector] Reduction complete",
		"points", len(y), "dims", cfg.Dims, "loss", loss, "elapsed", time.Since(start))

	return &Result{
		Coords:       y,
		Loss:         loss,
		NearPairs:    len(ps.near),
		MidNearPairs: len(ps.midNear),
		FarPairs:     len(ps.far),
	}, nil
}
