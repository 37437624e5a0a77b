// Package knn implements exact k-nearest-neighbor search.
//
// Two strategies are provided: a brute-force scan that works for any
// dimensionality and metric, fanned out over a bounded worker group, and a
// Gonum kd-tree for low-dimensional Euclidean data. Both are exact, so for a
// given input they return the same neighbor distances as a sequential scan.
package knn

import (
	"container/heap"
	"runtime"
	"slices"

	"github.com/sanonone/kektorviz/pkg/core/distance"
	"github.com/sanonone/kektorviz/pkg/core/types"
	"golang.org/x/sync/errgroup"
)

// rowsPerTask is the number of query points handed to one goroutine.
const rowsPerTask = 64

// BruteForce returns, for every point, its k nearest other points sorted by
// ascending distance (ties broken by index). The query point itself is never
// part of its own list, but exact duplicates of it are.
//
// workers <= 0 means GOMAXPROCS. Each task writes only its own rows of the
// result, so the output does not depend on scheduling.
func BruteForce(points [][]float64, k int, fn distance.Func, workers int) ([][]Neighbor, error) {
	n := len(points)
	if k < 1 {
		return nil, types.Inputf("knn: k must be positive, got %d", k)
	}
	if n <= k {
		return nil, &types.InsufficientDataError{Stage: "knn", Points: n, Need: k + 1}
	}
	if _, err := types.CheckDims(points); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([][]Neighbor, n)
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += rowsPerTask {
		end := min(start+rowsPerTask, n)
		g.Go(func() error {
			h := make(maxHeap, 0, k+1)
			for i := start; i < end; i++ {
				h = h[:0]
				q := points[i]
				for j, p := range points {
					if j == i {
						continue
					}
					cand := Neighbor{Index: j, Dist: fn(q, p)}
					if len(h) < k {
						heap.Push(&h, cand)
					} else if farther(h[0], cand) {
						h[0] = cand
						heap.Fix(&h, 0)
					}
				}
				row := make([]Neighbor, len(h))
				copy(row, h)
				slices.SortFunc(row, func(a, b Neighbor) int {
					switch {
					case farther(b, a):
						return -1
					case farther(a, b):
						return 1
					}
					return 0
				})
				out[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
