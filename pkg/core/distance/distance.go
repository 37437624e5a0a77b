// Package distance provides the vector distance kernels used by neighbor
// search. All kernels work on float64 slices and return squared distances so
// callers that only rank neighbors can skip the square root.
//
// Dot products go through the Gonum BLAS implementation, which dispatches to
// SIMD internally.
package distance

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/blas/gonum"
)

// Metric names a distance function.
type Metric string

const (
	// Euclidean is the squared Euclidean distance.
	Euclidean Metric = "euclidean"
	// Angular is the squared Euclidean distance between L2-normalized
	// vectors, i.e. 2 - 2*cos(a, b). Inputs must already be normalized.
	Angular Metric = "angular"
)

// Func returns the squared distance between two vectors of equal length.
type Func func(a, b []float64) float64

var gonumEngine = gonum.Implementation{}

// diffWorkspace holds scratch buffers for the BLAS Euclidean kernel so the
// hot loop of neighbor search does not allocate.
var diffWorkspace = sync.Pool{
	New: func() interface{} {
		s := make([]float64, 768)
		return &s
	},
}

// blasThreshold is the vector length above which the BLAS kernel beats the
// plain loop.
const blasThreshold = 32

// SquaredEuclidean returns sum((a[i]-b[i])^2).
func SquaredEuclidean(a, b []float64) float64 {
	n := len(a)
	if n < blasThreshold {
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return sum
	}

	diffPtr := diffWorkspace.Get().(*[]float64)
	defer diffWorkspace.Put(diffPtr)
	if cap(*diffPtr) < n {
		*diffPtr = make([]float64, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, a)
	gonumEngine.Daxpy(n, -1, b, 1, diff, 1)
	return gonumEngine.Ddot(n, diff, 1, diff, 1)
}

// EuclideanDistance returns the (non-squared) Euclidean distance.
func EuclideanDistance(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	return gonumEngine.Ddot(len(a), a, 1, b, 1)
}

func squaredAngular(a, b []float64) float64 {
	d := 2 - 2*Dot(a, b)
	if d < 0 {
		// rounding on near-identical unit vectors
		return 0
	}
	return d
}

// Normalize scales v in place to unit L2 norm. Zero vectors are left untouched.
func Normalize(v []float64) {
	norm := gonumEngine.Dnrm2(len(v), v, 1)
	if norm == 0 {
		return
	}
	gonumEngine.Dscal(len(v), 1/norm, v, 1)
}

var funcs = map[Metric]Func{
	Euclidean: SquaredEuclidean,
	Angular:   squaredAngular,
}

// Get returns the squared-distance function for a metric.
func Get(metric Metric) (Func, error) {
	fn, ok := funcs[metric]
	if !ok {
		return nil, fmt.Errorf("metric '%s' not supported", metric)
	}
	return fn, nil
}
