package minvar

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Options holds solver parameters. Tolerance and the iteration cap come
// from configuration, never hardcoded at call sites.
type Options struct {
	Tolerance     float64
	MaxIterations int

	// Seed for the Dirichlet initial draw. Zero seeds from the clock.
	Seed int64
}

// Optimizer solves the long-only fully-invested minimum-variance
// problem: minimize w'Σw subject to sum(w) = 1 and 0 ≤ w_i ≤ 1.
//
// The solver is projected gradient descent onto the unit simplex. The
// step size is derived from a Gershgorin bound on the largest eigenvalue
// of Σ, which makes the iteration a contraction for any positive
// semi-definite covariance.
type Optimizer struct {
	opts Options
	rng  *rand.Rand
	log  *logger.Logger
}

// New creates a minimum-variance optimizer.
func New(opts Options, log *logger.Logger) *Optimizer {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Optimizer{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
		log:  log,
	}
}

// ComputeWeights returns the minimum-variance weight vector for a K×T
// matrix of per-index log returns (rows are indices, in caller order).
// prevWeights, when non-nil, warm-starts the solver; otherwise the
// initial guess is a symmetric Dirichlet draw.
func (o *Optimizer) ComputeWeights(logReturns [][]float64, prevWeights []float64) ([]float64, error) {
	k := len(logReturns)
	if k == 0 {
		return nil, &contracts.ShapeMismatchError{Msg: "optimizer input has no return series"}
	}

	t := len(logReturns[0])
	if t < 2 {
		return nil, &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("optimizer needs at least 2 observations per series, got %d", t),
		}
	}
	for i, row := range logReturns {
		if len(row) != t {
			return nil, &contracts.ShapeMismatchError{
				Msg: fmt.Sprintf("optimizer input rows have unequal length: row 0 has %d, row %d has %d", t, i, len(row)),
			}
		}
	}

	cov := covarianceMatrix(logReturns)

	w := prevWeights
	if w == nil {
		w = o.dirichlet(k)
	} else {
		if len(w) != k {
			return nil, &contracts.ShapeMismatchError{
				Msg: fmt.Sprintf("warm-start weights have length %d, want %d", len(w), k),
			}
		}
		w = projectSimplex(append([]float64(nil), w...))
	}

	weights, iterations, residual := descend(cov, w, o.opts.Tolerance, o.opts.MaxIterations)
	if weights == nil {
		return nil, &contracts.OptimizationFailure{
			Iterations: o.opts.MaxIterations,
			Tolerance:  o.opts.Tolerance,
			Residual:   residual,
		}
	}

	o.log.WithFields(map[string]interface{}{
		"indices":    k,
		"iterations": iterations,
	}).Debug("Minimum-variance weights computed")

	return weights, nil
}

// covarianceMatrix computes the K×K sample covariance of the rows.
func covarianceMatrix(logReturns [][]float64) *mat.SymDense {
	k := len(logReturns)
	t := len(logReturns[0])

	// gonum wants observations in rows, variables in columns.
	samples := mat.NewDense(t, k, nil)
	for j, series := range logReturns {
		for i, v := range series {
			samples.Set(i, j, v)
		}
	}

	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, samples, nil)
	return cov
}

// descend runs projected gradient descent. Returns nil weights when the
// iteration cap is hit before the update shrinks below tolerance.
func descend(cov *mat.SymDense, start []float64, tol float64, maxIter int) ([]float64, int, float64) {
	k := len(start)

	// Gershgorin bound on the spectral radius of Σ.
	bound := 0.0
	for i := 0; i < k; i++ {
		rowSum := 0.0
		for j := 0; j < k; j++ {
			rowSum += math.Abs(cov.At(i, j))
		}
		if rowSum > bound {
			bound = rowSum
		}
	}

	// Degenerate covariance (all-zero returns): every feasible point is
	// optimal, keep the projected initial guess.
	if bound == 0 {
		return start, 0, 0
	}

	step := 1.0 / (2.0 * bound)

	w := append([]float64(nil), start...)
	grad := mat.NewVecDense(k, nil)
	residual := math.Inf(1)

	for iter := 1; iter <= maxIter; iter++ {
		grad.MulVec(cov, mat.NewVecDense(k, w))

		next := make([]float64, k)
		for i := 0; i < k; i++ {
			next[i] = w[i] - step*2.0*grad.AtVec(i)
		}
		next = projectSimplex(next)

		residual = 0.0
		for i := 0; i < k; i++ {
			if d := math.Abs(next[i] - w[i]); d > residual {
				residual = d
			}
		}
		w = next

		if residual < tol {
			return w, iter, residual
		}
	}

	return nil, maxIter, residual
}

// projectSimplex returns the Euclidean projection of v onto the unit
// simplex {w : sum(w) = 1, w ≥ 0}. Every coordinate of the result is in
// [0, 1], so the box constraint holds for free.
func projectSimplex(v []float64) []float64 {
	n := len(v)

	sorted := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumSum := 0.0
	theta := 0.0
	for i, u := range sorted {
		cumSum += u
		t := (cumSum - 1.0) / float64(i+1)
		if u-t > 0 {
			theta = t
		}
	}

	out := make([]float64, n)
	for i, u := range v {
		out[i] = math.Max(0, u-theta)
	}
	return out
}

// dirichlet draws from a symmetric Dirichlet distribution over k
// components: unit-rate exponentials, normalized.
func (o *Optimizer) dirichlet(k int) []float64 {
	w := make([]float64, k)
	sum := 0.0
	for i := range w {
		w[i] = o.rng.ExpFloat64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
