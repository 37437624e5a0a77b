package knn

import (
	"math"
	"slices"

	"github.com/sanonone/kektorviz/pkg/core/distance"
	"github.com/sanonone/kektorviz/pkg/core/types"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTreeMaxDims is the dimensionality above which a kd-tree stops paying off
// against the brute-force scan.
const KDTreeMaxDims = 8

// Distances returns, for every point, the Euclidean (not squared) distances
// to its k nearest other points in ascending order. Points with up to
// KDTreeMaxDims axes are searched with a kd-tree, higher dimensional input
// falls back to BruteForce.
//
// The kd-tree does not know point identities, so the query's own zero
// distance is removed by dropping the first (smallest) hit. Any duplicate
// of the query is also at distance zero, so which zero is dropped does not
// change the returned distances.
func Distances(points [][]float64, k int, workers int) ([][]float64, error) {
	n := len(points)
	if k < 1 {
		return nil, types.Inputf("knn: k must be positive, got %d", k)
	}
	if n <= k {
		return nil, &types.InsufficientDataError{Stage: "knn", Points: n, Need: k + 1}
	}
	dim, err := types.CheckDims(points)
	if err != nil {
		return nil, err
	}

	if dim > KDTreeMaxDims {
		nbrs, err := BruteForce(points, k, distance.SquaredEuclidean, workers)
		if err != nil {
			return nil, err
		}
		out := make([][]float64, n)
		for i, row := range nbrs {
			out[i] = make([]float64, len(row))
			for j, nb := range row {
				out[i][j] = math.Sqrt(nb.Dist)
			}
		}
		return out, nil
	}

	pts := make(kdtree.Points, n)
	for i, p := range points {
		pts[i] = kdtree.Point(slices.Clone(p))
	}
	tree := kdtree.New(pts, false)

	out := make([][]float64, n)
	for i, p := range points {
		keeper := kdtree.NewNKeeper(k + 1)
		tree.NearestSet(keeper, kdtree.Point(p))

		dists := make([]float64, 0, k+1)
		for _, c := range keeper.Heap {
			if c.Comparable == nil {
				continue
			}
			// kdtree.Point.Distance is the squared Euclidean distance.
			dists = append(dists, math.Sqrt(c.Dist))
		}
		slices.Sort(dists)
		if len(dists) > 0 {
			dists = dists[1:]
		}
		if len(dists) > k {
			dists = dists[:k]
		}
		out[i] = dists
	}
	return out, nil
}
