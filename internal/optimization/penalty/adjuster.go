package penalty

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Config controls the outer penalty loop.
type Config struct {
	// Factor k is multiplied by after every outer iteration
	Growth float64

	// Cap on outer iterations
	MaxIterations int

	// Shapes applied to the bound and constraint lists
	BoundShape      Shape
	ConstraintShape Shape
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Growth:          10,
		MaxIterations:   20,
		BoundShape:      Quadratic,
		ConstraintShape: Equality,
	}
}

// Iteration records one outer step of the penalty loop.
type Iteration struct {
	Index    int                  `json:"index"`
	K        float64              `json:"k"`
	Start    optimization.Point   `json:"start"`
	Solution optimization.Point   `json:"solution"`
	Value    float64              `json:"value"` // augmented objective at Solution
	Result   *optimization.Result `json:"-"`
}

// Adjuster wraps an inner solver and re-solves with a growing penalty scale
// until the solution stops moving. It implements optimization.Solver.
//
// An Adjuster owns its inner solver and is not safe for concurrent use.
type Adjuster struct {
	inner       optimization.Solver
	config      Config
	eps         float64
	logger      *zap.Logger
	f           optimization.Func
	bounds      []optimization.Func
	constraints []optimization.Func

	k       float64
	history []Iteration
}

// NewAdjuster wraps inner. Unset Growth and MaxIterations fall back to
// DefaultConfig; shapes are taken as given.
func NewAdjuster(inner optimization.Solver, settings optimization.Settings, config Config) *Adjuster {
	settings = settings.WithDefaults()
	d := DefaultConfig()
	if config.Growth <= 1 {
		config.Growth = d.Growth
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = d.MaxIterations
	}
	return &Adjuster{
		inner:  inner,
		config: config,
		eps:    settings.Epsilon,
		logger: settings.Logger.Named("penalty"),
		k:      1,
	}
}

// Name returns the inner method selector.
func (a *Adjuster) Name() string {
	return a.inner.Name()
}

// LogBatchSize returns the inner solver's batch size.
func (a *Adjuster) LogBatchSize() int {
	return a.inner.LogBatchSize()
}

// SetF sets the raw objective.
func (a *Adjuster) SetF(f optimization.Func) {
	a.f = f
}

// SetBounds replaces the bound functions. g >= 0 is feasible.
func (a *Adjuster) SetBounds(bounds ...optimization.Func) {
	a.bounds = bounds
}

// SetConstraints replaces the constraint functions, penalized with the
// constraint shape.
func (a *Adjuster) SetConstraints(constraints ...optimization.Func) {
	a.constraints = constraints
}

// Constrained reports whether any bound or constraint is set.
func (a *Adjuster) Constrained() bool {
	return len(a.bounds)+len(a.constraints) > 0
}

// K returns the scale of the last outer iteration.
func (a *Adjuster) K() float64 {
	return a.k
}

// KOfIteration returns the scale used at outer iteration n, clamped to K.
func (a *Adjuster) KOfIteration(n int) (float64, error) {
	if n < 0 {
		return 0, optimization.InvalidArgumentf("negative iteration %d", n).
			WithComponent("penalty").WithOperation("KOfIteration")
	}
	k := math.Pow(a.config.Growth, float64(n))
	if k > a.k {
		k = a.k
	}
	return k, nil
}

// Iterations returns the outer steps of the last Solve.
func (a *Adjuster) Iterations() []Iteration {
	out := make([]Iteration, len(a.history))
	copy(out, a.history)
	return out
}

// Augmented returns the objective f plus the bound and constraint penalties
// at scale k.
func (a *Adjuster) Augmented(k float64) optimization.Func {
	f := a.f
	bounds, boundShape := a.bounds, a.config.BoundShape
	constraints, constraintShape := a.constraints, a.config.ConstraintShape
	return func(x, y float64) float64 {
		v := f(x, y)
		if len(bounds) > 0 {
			v += boundShape.Penalty(evalAll(bounds, x, y), k)
		}
		if len(constraints) > 0 {
			v += constraintShape.Penalty(evalAll(constraints, x, y), k)
		}
		return v
	}
}

func evalAll(fs []optimization.Func, x, y float64) []float64 {
	values := make([]float64, len(fs))
	for i, g := range fs {
		values[i] = g(x, y)
	}
	return values
}

// Solve runs the penalty loop. Without bounds or constraints it is a single
// inner solve. The first outer iteration starts from the given seeds, later
// ones from the previous solution. The returned Result concatenates every
// inner trajectory and reports the raw objective at the final solution.
func (a *Adjuster) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	const op = "Solve"

	if a.f == nil {
		return nil, optimization.WrapError(optimization.ErrNoObjective, "cannot solve").
			WithComponent("penalty").WithOperation(op)
	}
	if len(start) == 0 {
		return nil, optimization.InvalidArgumentf("no start points passed to solver").
			WithComponent("penalty").WithOperation(op)
	}

	a.k = 1
	a.history = nil

	// committed to a.k and a.history only once the whole run succeeds
	var history []Iteration
	final := 1.0

	limit := a.config.MaxIterations
	if !a.Constrained() {
		limit = 1
	}

	trace := optimization.NewTrace()
	seeds := start
	var last *optimization.Result
	status, iterations := optimization.StatusIterationLimit, limit
	for n := 0; n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return nil, optimization.WrapError(err, "solve interrupted").WithComponent("penalty").WithOperation(op)
		}

		k := math.Pow(a.config.Growth, float64(n))
		a.inner.SetF(a.Augmented(k))
		res, err := a.inner.Solve(ctx, seeds...)
		if err != nil {
			return nil, err
		}
		trace.Append(res)

		final = k
		history = append(history, Iteration{
			Index:    n,
			K:        k,
			Start:    seeds[0],
			Solution: res.Solution,
			Value:    res.Value,
			Result:   res,
		})
		a.logger.Debug("Penalty iteration finished",
			zap.Int("iteration", n),
			zap.Float64("k", k),
			zap.Float64("x", res.Solution.X),
			zap.Float64("y", res.Solution.Y),
			zap.Float64("value", res.Value))

		if !a.Constrained() {
			status, iterations = res.Status, res.Iterations
			last = res
			break
		}
		if last != nil && res.Solution.Distance(last.Solution) < a.eps {
			status, iterations = optimization.StatusConverged, n+1
			last = res
			break
		}
		last = res
		seeds = []optimization.Point{res.Solution}
	}

	a.k, a.history = final, history

	solution := last.Solution
	return &optimization.Result{
		Solution:   solution,
		Value:      a.f.At(solution),
		Status:     status,
		Iterations: iterations,
		Points:     trace.Points(),
		Segments:   trace.Segments(),
		Log:        trace.Lines(),
		LogBatch:   a.LogBatchSize(),
	}, nil
}
