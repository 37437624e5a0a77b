package projector

import (
	"fmt"
	"math/rand/v2"

	"github.com/sanonone/kektorviz/pkg/core/distance"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// preprocess returns a centered copy of x. Wide inputs are projected onto
// their top principal axes when applyPCA is set; everything else is min-max
// scaled to [0, 1] as a whole (one min and max over all values) and then
// centered per column.
func preprocess(x [][]float64, applyPCA bool) ([][]float64, error) {
	dim := len(x[0])
	if applyPCA && dim > PCAThreshold {
		return pca(x, PCAThreshold)
	}

	out := make([][]float64, len(x))
	lo, hi := floats.Min(x[0]), floats.Max(x[0])
	for i, row := range x {
		out[i] = append([]float64(nil), row...)
		lo = min(lo, floats.Min(row))
		hi = max(hi, floats.Max(row))
	}
	for _, row := range out {
		floats.AddConst(-lo, row)
	}
	if span := hi - lo; span > 0 {
		for _, row := range out {
			floats.Scale(1/span, row)
		}
	}
	center(out)
	return out, nil
}

// center subtracts the column means in place.
func center(x [][]float64) {
	dim := len(x[0])
	col := make([]float64, len(x))
	for j := 0; j < dim; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean := stat.Mean(col, nil)
		for _, row := range x {
			row[j] -= mean
		}
	}
}

// pca centers x and returns its projection on the top `comps` principal
// axes. When fewer axes exist (comps > min(n, d)) the result is narrower
// than requested. Each axis is oriented so that its largest loading is
// positive, which makes the output independent of the SVD's sign choice.
func pca(x [][]float64, comps int) ([][]float64, error) {
	n, d := len(x), len(x[0])
	m := mat.NewDense(n, d, nil)
	for i, row := range x {
		m.SetRow(i, row)
	}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, m)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			m.Set(i, j, col[i]-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, fmt.Errorf("projector: SVD did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	r := min(comps, n, d)
	axes := mat.DenseCopyOf(v.Slice(0, d, 0, r))
	loading := make([]float64, d)
	for j := 0; j < r; j++ {
		mat.Col(loading, j, axes)
		if loading[floats.MaxIdx(absAll(loading))] < 0 {
			for i := 0; i < d; i++ {
				axes.Set(i, j, -axes.At(i, j))
			}
		}
	}

	var proj mat.Dense
	proj.Mul(m, axes)
	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}
	return out, nil
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x < 0 {
			x = -x
		}
		out[i] = x
	}
	return out
}

// initLayout builds the starting embedding.
func initLayout(x [][]float64, cfg Config, rng *rand.Rand) ([][]float64, error) {
	n := len(x)
	y := make([][]float64, n)

	if cfg.Init == InitRandom {
		for i := range y {
			y[i] = make([]float64, cfg.Dims)
			for j := range y[i] {
				y[i][j] = 1e-4 * rng.NormFloat64()
			}
		}
		return y, nil
	}

	proj, err := pca(x, cfg.Dims)
	if err != nil {
		return nil, err
	}
	got := len(proj[0])
	for i := range y {
		y[i] = make([]float64, cfg.Dims)
		for j := 0; j < got; j++ {
			y[i][j] = 0.01 * proj[i][j]
		}
		// Axes PCA cannot supply start from noise, otherwise their gradient
		// would stay zero forever.
		for j := got; j < cfg.Dims; j++ {
			y[i][j] = 1e-4 * rng.NormFloat64()
		}
	}
	return y, nil
}

// searchSpace returns the matrix distances are measured on: the preprocessed
// data, row-normalized for the angular metric.
func searchSpace(x [][]float64, metric distance.Metric) [][]float64 {
	if metric != distance.Angular {
		return x
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = append([]float64(nil), row...)
		distance.Normalize(out[i])
	}
	return out
}
