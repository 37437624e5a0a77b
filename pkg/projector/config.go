package projector

import (
	"github.com/sanonone/kektorviz/pkg/core/distance"
	"github.com/sanonone/kektorviz/pkg/core/types"
)

// InitMethod selects how the low-dimensional layout is seeded.
type InitMethod string

const (
	// InitPCA starts from the top principal axes of the preprocessed data.
	InitPCA InitMethod = "pca"
	// InitRandom starts from small Gaussian noise.
	InitRandom InitMethod = "random"
)

// Config holds every parameter of one reduction. It is passed by value into
// Reduce; nothing is kept between calls.
type Config struct {
	// Dims is the number of output axes.
	Dims int `yaml:"dims"`
	// Neighbors is the number of near pairs per point.
	Neighbors int `yaml:"neighbors"`
	// MidNearRatio scales the number of mid-near pairs per point
	// (int(Neighbors*MidNearRatio)).
	MidNearRatio float64 `yaml:"mid_near_ratio"`
	// FarPairRatio scales the number of far pairs per point
	// (int(Neighbors*FarPairRatio)).
	FarPairRatio float64    `yaml:"far_pair_ratio"`
	Init         InitMethod `yaml:"init"`
	// Seed drives pair sampling and random init. Equal seeds and inputs give
	// bit-identical output.
	Seed uint64 `yaml:"seed"`
	// Iterations is the length of the three optimization phases.
	Iterations   [3]int          `yaml:"iterations,flow"`
	LearningRate float64         `yaml:"learning_rate"`
	Distance     distance.Metric `yaml:"distance"`
	// ApplyPCA projects inputs with more than PCAThreshold dimensions onto
	// their top PCAThreshold principal axes before neighbor search.
	ApplyPCA bool `yaml:"apply_pca"`
	// Workers bounds neighbor search parallelism; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// PCAThreshold is the input dimensionality above which ApplyPCA kicks in,
// and the number of axes kept when it does.
const PCAThreshold = 100

// DefaultConfig returns the settings used by the reduce command.
func DefaultConfig() Config {
	return Config{
		Dims:         3,
		Neighbors:    10,
		MidNearRatio: 0.5,
		FarPairRatio: 2.0,
		Init:         InitPCA,
		Seed:         42,
		Iterations:   [3]int{100, 100, 250},
		LearningRate: 1.0,
		Distance:     distance.Euclidean,
		ApplyPCA:     true,
	}
}

// Validate reports configuration errors as ErrInput.
func (c Config) Validate() error {
	if c.Dims < 1 {
		return types.Inputf("projector: dims must be at least 1, got %d", c.Dims)
	}
	if c.Neighbors < 1 {
		return types.Inputf("projector: neighbors must be at least 1, got %d", c.Neighbors)
	}
	if c.MidNearRatio < 0 || c.FarPairRatio < 0 {
		return types.Inputf("projector: pair ratios must not be negative (mid-near %g, far %g)", c.MidNearRatio, c.FarPairRatio)
	}
	switch c.Init {
	case InitPCA, InitRandom:
	default:
		return types.Inputf("projector: unknown init %q (want %q or %q)", c.Init, InitPCA, InitRandom)
	}
	if _, err := distance.Get(c.Distance); err != nil {
		return types.Inputf("projector: %v", err)
	}
	for i, it := range c.Iterations {
		if it < 0 {
			return types.Inputf("projector: phase %d has negative iterations", i+1)
		}
	}
	if c.LearningRate <= 0 {
		return types.Inputf("projector: learning rate must be positive, got %g", c.LearningRate)
	}
	return nil
}

func (c Config) midNearPairs() int { return int(float64(c.Neighbors) * c.MidNearRatio) }
func (c Config) farPairs() int     { return int(float64(c.Neighbors) * c.FarPairRatio) }
