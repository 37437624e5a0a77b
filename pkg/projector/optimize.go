package projector

import (
	"log/slog"
	"math"
)

// Adam hyper-parameters.
const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1e-7
)

// midNearStartWeight is the mid-near weight at iteration 0. It decays
// linearly to midNearPhaseWeight over the first phase.
const (
	midNearStartWeight = 1000.0
	midNearPhaseWeight = 3.0
)

// weights are the per-family multipliers of one iteration.
type weights struct {
	near, midNear, far float64
}

// schedule returns the weights for iteration itr. Phase one pulls the global
// layout into shape with a strong mid-near term, phase two balances local and
// global structure, phase three drops mid-near pairs and refines neighborhoods.
func schedule(itr int, phases [3]int) weights {
	switch {
	case itr < phases[0]:
		frac := float64(itr) / float64(phases[0])
		return weights{
			near:    2,
			midNear: (1-frac)*midNearStartWeight + frac*midNearPhaseWeight,
			far:     1,
		}
	case itr < phases[0]+phases[1]:
		return weights{near: 3, midNear: midNearPhaseWeight, far: 1}
	default:
		return weights{near: 1, midNear: 0, far: 1}
	}
}

// optimizer holds the Adam state of one embedding.
type optimizer struct {
	y    [][]float64
	grad [][]float64
	m    [][]float64
	v    [][]float64
	lr   float64
	diff []float64
}

func newOptimizer(y [][]float64, lr float64) *optimizer {
	alloc := func() [][]float64 {
		out := make([][]float64, len(y))
		for i := range out {
			out[i] = make([]float64, len(y[i]))
		}
		return out
	}
	return &optimizer{
		y:    y,
		grad: alloc(),
		m:    alloc(),
		v:    alloc(),
		lr:   lr,
		diff: make([]float64, len(y[0])),
	}
}

// gradient accumulates the gradient of all three pair losses into o.grad and
// returns the total loss. Pairs are visited in a fixed order so the floating
// point sums are reproducible.
func (o *optimizer) gradient(ps *pairSet, w weights) float64 {
	for _, g := range o.grad {
		clear(g)
	}
	var loss float64

	// near: loss d/(10+d), attractive
	if w.near != 0 {
		for _, p := range ps.near {
			d := o.delta(p)
			c := w.near * 20 / ((10 + d) * (10 + d))
			o.push(p, c)
			loss += w.near * d / (10 + d)
		}
	}
	// mid-near: loss d/(10000+d), weakly attractive over a long range
	if w.midNear != 0 {
		for _, p := range ps.midNear {
			d := o.delta(p)
			c := w.midNear * 20000 / ((10000 + d) * (10000 + d))
			o.push(p, c)
			loss += w.midNear * d / (10000 + d)
		}
	}
	// far: loss 1/(1+d), repulsive
	if w.far != 0 {
		for _, p := range ps.far {
			d := o.delta(p)
			c := w.far * 2 / ((1 + d) * (1 + d))
			o.push(p, -c)
			loss += w.far / (1 + d)
		}
	}
	return loss
}

// delta stores y_i - y_j in o.diff and returns 1 + ||y_i - y_j||².
func (o *optimizer) delta(p pair) float64 {
	yi, yj := o.y[p.i], o.y[p.j]
	d := 1.0
	for k := range o.diff {
		o.diff[k] = yi[k] - yj[k]
		d += o.diff[k] * o.diff[k]
	}
	return d
}

// push adds c*(y_i - y_j) to grad_i and subtracts it from grad_j.
func (o *optimizer) push(p pair, c float64) {
	gi, gj := o.grad[p.i], o.grad[p.j]
	for k, dk := range o.diff {
		gi[k] += c * dk
		gj[k] -= c * dk
	}
}

// step applies one bias-corrected Adam update for iteration itr.
func (o *optimizer) step(itr int) {
	t := float64(itr + 1)
	lrT := o.lr * math.Sqrt(1-math.Pow(beta2, t)) / (1 - math.Pow(beta1, t))
	for i, yi := range o.y {
		gi, mi, vi := o.grad[i], o.m[i], o.v[i]
		for k := range yi {
			mi[k] += (1 - beta1) * (gi[k] - mi[k])
			vi[k] += (1 - beta2) * (gi[k]*gi[k] - vi[k])
			yi[k] -= lrT * mi[k] / (math.Sqrt(vi[k]) + epsilon)
		}
	}
}

// run performs every iteration of the schedule on o.y in place and returns
// the final loss.
func (o *optimizer) run(ps *pairSet, phases [3]int) float64 {
	total := phases[0] + phases[1] + phases[2]
	var loss float64
	for itr := 0; itr < total; itr++ {
		w := schedule(itr, phases)
		loss = o.gradient(ps, w)
		o.step(itr)
		if (itr+1)%50 == 0 {
			slog.Debug("[Projector] Optimization progress", "iteration", itr+1, "of", total, "loss", loss)
		}
	}
	return loss
}
