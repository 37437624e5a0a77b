package knn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/sanonone/kektorviz/pkg/core/distance"
	"github.com/sanonone/kektorviz/pkg/core/types"
)

func randomPoints(seed int64, n, dim int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, dim)
		for j := range pts[i] {
			pts[i][j] = rng.Float64()
		}
	}
	return pts
}

func TestBruteForceLine(t *testing.T) {
	// 0, 1, 3, 6, 10 on a line
	pts := [][]float64{{0}, {1}, {3}, {6}, {10}}
	nbrs, err := BruteForce(pts, 2, distance.SquaredEuclidean, 1)
	if err != nil {
		t.Fatalf("BruteForce failed: %v", err)
	}

	want := [][]int{{1, 2}, {0, 2}, {1, 0}, {2, 4}, {3, 2}}
	for i, row := range nbrs {
		if len(row) != 2 {
			t.Fatalf("row %d: got %d neighbors, want 2", i, len(row))
		}
		for j, nb := range row {
			if nb.Index != want[i][j] {
				t.Errorf("row %d neighbor %d: got index %d, want %d", i, j, nb.Index, want[i][j])
			}
			if nb.Index == i {
				t.Errorf("row %d contains itself", i)
			}
		}
	}
}

func TestBruteForceTiesBrokenByIndex(t *testing.T) {
	// Point 0 is equidistant from all others.
	pts := [][]float64{{0, 0}, {1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	nbrs, err := BruteForce(pts, 3, distance.SquaredEuclidean, 2)
	if err != nil {
		t.Fatalf("BruteForce failed: %v", err)
	}
	for j, want := range []int{1, 2, 3} {
		if got := nbrs[0][j].Index; got != want {
			t.Errorf("neighbor %d: got %d, want %d", j, got, want)
		}
	}
}

func TestBruteForceWorkerCountDoesNotChangeResult(t *testing.T) {
	pts := randomPoints(1, 300, 12)
	seq, err := BruteForce(pts, 7, distance.SquaredEuclidean, 1)
	if err != nil {
		t.Fatal(err)
	}
	par, err := BruteForce(pts, 7, distance.SquaredEuclidean, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := range seq {
		for j := range seq[i] {
			if seq[i][j] != par[i][j] {
				t.Fatalf("row %d neighbor %d differs: %+v vs %+v", i, j, seq[i][j], par[i][j])
			}
		}
	}
}

func TestDistancesKDTreeMatchesBruteForce(t *testing.T) {
	pts := randomPoints(2, 200, 3)
	const k = 5

	tree, err := Distances(pts, k, 0)
	if err != nil {
		t.Fatalf("Distances failed: %v", err)
	}
	brute, err := BruteForce(pts, k, distance.SquaredEuclidean, 0)
	if err != nil {
		t.Fatal(err)
	}

	for i := range pts {
		if len(tree[i]) != k {
			t.Fatalf("row %d: got %d distances, want %d", i, len(tree[i]), k)
		}
		for j := 0; j < k; j++ {
			want := math.Sqrt(brute[i][j].Dist)
			if math.Abs(tree[i][j]-want) > 1e-12 {
				t.Errorf("row %d, neighbor %d: kd-tree %g, brute force %g", i, j, tree[i][j], want)
			}
		}
	}
}

func TestDistancesHighDimFallsBack(t *testing.T) {
	pts := randomPoints(3, 50, KDTreeMaxDims+4)
	d, err := Distances(pts, 4, 2)
	if err != nil {
		t.Fatalf("Distances failed: %v", err)
	}
	for i, row := range d {
		for j := 1; j < len(row); j++ {
			if row[j] < row[j-1] {
				t.Errorf("row %d not sorted: %v", i, row)
			}
		}
	}
}

func TestDistancesDuplicates(t *testing.T) {
	pts := [][]float64{{1, 1}, {1, 1}, {1, 1}, {5, 5}}
	d, err := Distances(pts, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if d[i][0] != 0 || d[i][1] != 0 {
			t.Errorf("row %d: expected two zero distances, got %v", i, d[i])
		}
	}
}

func TestErrors(t *testing.T) {
	testCases := []struct {
		name   string
		points [][]float64
		k      int
		want   error
	}{
		{"TooFewPoints", [][]float64{{0}, {1}}, 2, types.ErrInsufficientData},
		{"ZeroK", [][]float64{{0}, {1}}, 0, types.ErrInput},
		{"Ragged", [][]float64{{0, 1}, {1}, {2, 2}}, 1, types.ErrDimensionMismatch},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Distances(tc.points, tc.k, 1)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}
