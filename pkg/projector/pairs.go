package projector

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sanonone/kektorviz/pkg/core/distance"
	"github.com/sanonone/kektorviz/pkg/core/knn"
)

// pair is an (i, j) index pair whose embedding distance is optimized.
type pair struct{ i, j int }

// pairSet holds the three pair families driving the optimization.
type pairSet struct {
	near    []pair
	midNear []pair
	far     []pair
}

// extraNeighbors is how many candidates beyond Neighbors are ranked by the
// scaled distance before the near pairs are picked.
const extraNeighbors = 50

// midNearSample is how many random points a mid-near pair is drawn from;
// the second closest of them is kept.
const midNearSample = 6

// nearPairs picks, for every point, the Neighbors candidates with the lowest
// scaled distance d²/(σ_i σ_j), where σ is a point's mean distance to its 4th
// to 6th nearest neighbors. The scaling adapts to local density so sparse
// regions are not starved of attraction.
func nearPairs(x [][]float64, cfg Config, fn distance.Func) ([]pair, [][]int, error) {
	n := len(x)
	extra := min(cfg.Neighbors+extraNeighbors, n-1)

	cands, err := knn.BruteForce(x, extra, fn, cfg.Workers)
	if err != nil {
		return nil, nil, err
	}

	sig := make([]float64, n)
	for i, row := range cands {
		lo, hi := min(3, len(row)-1), min(6, len(row))
		var sum float64
		for _, nb := range row[lo:hi] {
			sum += math.Sqrt(nb.Dist)
		}
		sig[i] = max(sum/float64(hi-lo), 1e-10)
	}

	type scored struct {
		j     int
		rank  int
		score float64
	}
	pairs := make([]pair, 0, n*cfg.Neighbors)
	neighbors := make([][]int, n)
	buf := make([]scored, extra)
	for i, row := range cands {
		buf = buf[:len(row)]
		for r, nb := range row {
			buf[r] = scored{j: nb.Index, rank: r, score: nb.Dist / sig[i] / sig[nb.Index]}
		}
		slices.SortFunc(buf, func(a, b scored) int {
			if a.score != b.score {
				if a.score < b.score {
					return -1
				}
				return 1
			}
			return a.rank - b.rank
		})
		keep := min(cfg.Neighbors, len(buf))
		neighbors[i] = make([]int, keep)
		for r := 0; r < keep; r++ {
			neighbors[i][r] = buf[r].j
			pairs = append(pairs, pair{i, buf[r].j})
		}
	}
	return pairs, neighbors, nil
}

// midNearPairs draws, for every point, int(Neighbors*MidNearRatio) pairs.
// Each pair samples six distinct non-self points and keeps the second
// closest, which lands at a middle distance and ties clusters together.
func midNearPairs(x [][]float64, cfg Config, fn distance.Func, rng *rand.Rand) []pair {
	n := len(x)
	per := cfg.midNearPairs()
	if per == 0 {
		return nil
	}
	size := min(midNearSample, n-1)
	pairs := make([]pair, 0, n*per)
	sample := make([]int, 0, size)
	dists := make([]float64, size)
	order := make([]int, size)

	for i := 0; i < n; i++ {
		for p := 0; p < per; p++ {
			sample = sampleDistinct(rng, n, size, sample[:0], func(j int) bool { return j == i })
			for s, j := range sample {
				dists[s] = fn(x[i], x[j])
				order[s] = s
			}
			slices.SortFunc(order[:len(sample)], func(a, b int) int {
				if dists[a] != dists[b] {
					if dists[a] < dists[b] {
						return -1
					}
					return 1
				}
				return sample[a] - sample[b]
			})
			pick := order[min(1, len(sample)-1)]
			pairs = append(pairs, pair{i, sample[pick]})
		}
	}
	return pairs
}

// farPairs draws, for every point, int(Neighbors*FarPairRatio) distinct
// partners that are neither the point itself nor one of its near neighbors.
// When fewer eligible points exist, all of them are used.
func farPairs(n int, neighbors [][]int, cfg Config, rng *rand.Rand) []pair {
	per := cfg.farPairs()
	if per == 0 {
		return nil
	}
	pairs := make([]pair, 0, n*per)
	picked := make([]int, 0, per)

	for i := 0; i < n; i++ {
		nb := neighbors[i]
		reject := func(j int) bool { return j == i || slices.Contains(nb, j) }

		eligible := n - 1 - len(nb)
		if eligible <= 0 {
			continue
		}
		if eligible <= per {
			for j := 0; j < n; j++ {
				if !reject(j) {
					pairs = append(pairs, pair{i, j})
				}
			}
			continue
		}

		picked = sampleDistinct(rng, n, per, picked[:0], reject)
		for _, j := range picked {
			pairs = append(pairs, pair{i, j})
		}
	}
	return pairs
}

// sampleDistinct appends `count` distinct indices in [0, n) for which reject
// returns false, using rejection sampling. Callers guarantee enough
// candidates exist.
func sampleDistinct(rng *rand.Rand, n, count int, dst []int, reject func(int) bool) []int {
	for len(dst) < count {
		j := rng.IntN(n)
		if reject(j) || slices.Contains(dst, j) {
			continue
		}
		dst = append(dst, j)
	}
	return dst
}

func buildPairs(x [][]float64, cfg Config, rng *rand.Rand) (*pairSet, error) {
	fn, err := distance.Get(cfg.Distance)
	if err != nil {
		return nil, err
	}
	near, neighbors, err := nearPairs(x, cfg, fn)
	if err != nil {
		return nil, err
	}
	return &pairSet{
		near:    near,
		midNear: midNearPairs(x, cfg, fn, rng),
		far:     farPairs(len(x), neighbors, cfg, rng),
	}, nil
}
