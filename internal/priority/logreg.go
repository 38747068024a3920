package priority

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// softmaxModel is a multinomial logistic regression over the classes seen
// in training. Row k of weights and bias[k] belong to classes[k].
type softmaxModel struct {
	weights [][]float64
	bias    []float64
}

// fitSoftmax minimises C * sum(cross-entropy) + 0.5 * ||W||^2 with L-BFGS.
// Intercepts are not penalised. y holds row indexes into the class list,
// not label indexes.
func fitSoftmax(x [][]feature, y []int, numClasses, dim int, c float64, maxIter int) (*softmaxModel, error) {
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	nw := numClasses * dim
	obj := &softmaxObjective{x: x, y: y, k: numClasses, d: dim, c: c}

	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: 1e-4,
	}

	x0 := make([]float64, nw+numClasses)
	// a line search failure near the optimum still leaves a usable point,
	// so err only matters when there is no solution at all
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != len(x0) {
		if err == nil {
			err = errors.New("optimizer returned no solution")
		}
		return nil, fmt.Errorf("logistic regression: %w", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("logistic regression: diverged")
		}
	}

	m := &softmaxModel{
		weights: make([][]float64, numClasses),
		bias:    make([]float64, numClasses),
	}
	for k := range numClasses {
		m.weights[k] = append([]float64(nil), result.X[k*dim:(k+1)*dim]...)
		m.bias[k] = result.X[nw+k]
	}
	return m, nil
}

// decide returns the row with the highest score; ties go to the lower row.
func (m *softmaxModel) decide(x []feature) int {
	best, bestScore := 0, math.Inf(-1)
	for k := range m.weights {
		s := dot(m.weights[k], x) + m.bias[k]
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	return best
}

type softmaxObjective struct {
	x [][]feature
	y []int
	k int
	d int
	c float64
}

func (o *softmaxObjective) value(params []float64) float64 {
	z := make([]float64, o.k)
	var loss float64
	for i, xi := range o.x {
		o.scores(params, xi, z)
		loss += logSumExp(z) - z[o.y[i]]
	}
	var reg float64
	for _, w := range params[:o.k*o.d] {
		reg += w * w
	}
	return o.c*loss + 0.5*reg
}

func (o *softmaxObjective) gradient(grad, params []float64) {
	nw := o.k * o.d
	for j := range grad {
		grad[j] = 0
	}

	z := make([]float64, o.k)
	for i, xi := range o.x {
		o.scores(params, xi, z)
		lse := logSumExp(z)
		for k := range o.k {
			r := math.Exp(z[k] - lse)
			if k == o.y[i] {
				r--
			}
			r *= o.c
			row := grad[k*o.d : (k+1)*o.d]
			for _, f := range xi {
				row[f.idx] += r * f.val
			}
			grad[nw+k] += r
		}
	}
	for j := range nw {
		grad[j] += params[j]
	}
}

func (o *softmaxObjective) scores(params []float64, xi []feature, z []float64) {
	nw := o.k * o.d
	for k := range o.k {
		z[k] = dot(params[k*o.d:(k+1)*o.d], xi) + params[nw+k]
	}
}

func dot(w []float64, x []feature) float64 {
	var s float64
	for _, f := range x {
		s += w[f.idx] * f.val
	}
	return s
}

func logSumExp(z []float64) float64 {
	m := math.Inf(-1)
	for _, v := range z {
		if v > m {
			m = v
		}
	}
	var s float64
	for _, v := range z {
		s += math.Exp(v - m)
	}
	return m + math.Log(s)
}
