package density

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a score distribution for reporting.
type Summary struct {
	Points      int     `json:"points"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Low         float64 `json:"low_percentile_value"`
	High        float64 `json:"high_percentile_value"`
	ClampedLow  int     `json:"clamped_low"`
	ClampedHigh int     `json:"clamped_high"`
	Degenerate  bool    `json:"degenerate"`
}

// Summary computes statistics over the final scores.
func (r *Result) Summary() Summary {
	s := Summary{
		Points:     len(r.Scores),
		Low:        r.Low,
		High:       r.High,
		Degenerate: r.Degenerate,
	}
	if len(r.Scores) == 0 {
		return s
	}
	s.Min = floats.Min(r.Scores)
	s.Max = floats.Max(r.Scores)
	s.Mean, s.StdDev = stat.MeanStdDev(r.Scores, nil)
	if r.Degenerate {
		return s
	}
	for _, v := range r.Scores {
		switch v {
		case 0:
			s.ClampedLow++
		case 1:
			s.ClampedHigh++
		}
	}
	return s
}
