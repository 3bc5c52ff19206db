// Package problem assembles a solvable problem from user input: formulas for
// the objective, bounds and constraints, a method selector and start points.
package problem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/copyleftdev/planeopt/internal/expression"
	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/methods"
	"github.com/copyleftdev/planeopt/internal/optimization/penalty"
	"github.com/copyleftdev/planeopt/internal/surface"
)

// Spec is the user-facing description of a problem. Empty fields select the
// defaults.
type Spec struct {
	Function        string               `json:"function"`
	Method          string               `json:"method,omitempty"`
	Bounds          []string             `json:"bounds,omitempty"`
	BoundShape      string               `json:"bound_shape,omitempty"`
	Constraints     []string             `json:"constraints,omitempty"`
	ConstraintShape string               `json:"constraint_shape,omitempty"`
	Start           []optimization.Point `json:"start,omitempty"`
	// StartX and StartY are "x1; x2; ..." lists, an alternative to Start
	StartX        string  `json:"start_x,omitempty"`
	StartY        string  `json:"start_y,omitempty"`
	Epsilon       float64 `json:"epsilon,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
}

// Defaults supplies the values used for unset Spec fields.
type Defaults struct {
	Settings optimization.Settings
	Method   methods.Method
	Penalty  penalty.Config
}

// Problem is a compiled Spec.
type Problem struct {
	Method      methods.Method
	Objective   *expression.Expression
	Bounds      []*expression.Expression
	Constraints []*expression.Expression
	Start       []optimization.Point

	settings optimization.Settings
	config   penalty.Config
	adjuster *penalty.Adjuster
}

// Outcome is the record of one Solve.
type Outcome struct {
	Method   methods.Method
	Result   *optimization.Result
	K        float64
	History  []penalty.Iteration
	Duration time.Duration
}

// Log returns the solution log grouped by the method's batch size.
func (o *Outcome) Log() []string {
	return o.Result.SolutionLog()
}

// Build compiles spec. Method "none" builds a problem that can only be
// sampled, not solved.
func Build(spec Spec, defaults Defaults) (*Problem, error) {
	objective, err := expression.Parse(spec.Function)
	if err != nil {
		return nil, err
	}
	bounds, err := expression.ParseAll(spec.Bounds)
	if err != nil {
		return nil, err
	}
	constraints, err := expression.ParseAll(spec.Constraints)
	if err != nil {
		return nil, err
	}

	method := defaults.Method
	if strings.TrimSpace(spec.Method) != "" {
		if method, err = methods.Parse(spec.Method); err != nil {
			return nil, err
		}
	}

	config := defaults.Penalty
	if config == (penalty.Config{}) {
		config = penalty.DefaultConfig()
	}
	if spec.BoundShape != "" {
		if config.BoundShape, err = penalty.ParseShape(spec.BoundShape); err != nil {
			return nil, err
		}
	}
	if spec.ConstraintShape != "" {
		if config.ConstraintShape, err = penalty.ParseShape(spec.ConstraintShape); err != nil {
			return nil, err
		}
	}

	start := spec.Start
	if len(start) == 0 {
		if start, err = ParsePoints(spec.StartX, spec.StartY); err != nil {
			return nil, err
		}
	}
	if len(start) == 0 {
		start = []optimization.Point{optimization.Pt(0, 0)}
	}
	for _, p := range start {
		if !p.IsFinite() {
			return nil, optimization.InvalidArgumentf("start point %v is not finite", p).
				WithComponent("problem").WithOperation("Build")
		}
	}

	settings := defaults.Settings
	if spec.Epsilon > 0 {
		settings.Epsilon = spec.Epsilon
	}
	if spec.MaxIterations > 0 {
		settings.MaxIterations = spec.MaxIterations
	}
	settings = settings.WithDefaults()

	p := &Problem{
		Method:      method,
		Objective:   objective,
		Bounds:      bounds,
		Constraints: constraints,
		Start:       start,
		settings:    settings,
		config:      config,
	}

	if method != methods.None {
		inner, err := methods.New(method, settings)
		if err != nil {
			return nil, err
		}
		p.adjuster = penalty.NewAdjuster(inner, settings, config)
	} else {
		// a solver-less adjuster still builds augmented surfaces
		p.adjuster = penalty.NewAdjuster(noSolver{}, settings, config)
	}
	p.adjuster.SetF(objective.Func())
	p.adjuster.SetBounds(expression.Funcs(bounds)...)
	p.adjuster.SetConstraints(expression.Funcs(constraints)...)
	return p, nil
}

// Solvable reports whether the problem has a solver.
func (p *Problem) Solvable() bool {
	return p.Method != methods.None
}

// Solve runs the configured method, wrapped in the penalty loop when bounds
// or constraints are present.
func (p *Problem) Solve(ctx context.Context) (*Outcome, error) {
	if !p.Solvable() {
		return nil, optimization.InvalidArgumentf("method %q has no solver", p.Method).
			WithComponent("problem").WithOperation("Solve")
	}

	started := time.Now()
	res, err := p.adjuster.Solve(ctx, p.Start...)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Method:   p.Method,
		Result:   res,
		K:        p.adjuster.K(),
		History:  p.adjuster.Iterations(),
		Duration: time.Since(started),
	}, nil
}

// Constrained reports whether any bound or constraint is set.
func (p *Problem) Constrained() bool {
	return p.adjuster.Constrained()
}

// Augmented returns the objective with penalties at scale k. For an
// unconstrained problem, or k <= 0, it is the raw objective.
func (p *Problem) Augmented(k float64) optimization.Func {
	if k <= 0 || !p.Constrained() {
		return p.Objective.Func()
	}
	return p.adjuster.Augmented(k)
}

// KOfIteration returns the scale used at outer iteration n of the last Solve.
func (p *Problem) KOfIteration(n int) (float64, error) {
	return p.adjuster.KOfIteration(n)
}

// SurfaceKey identifies the grid of the surface augmented at scale k.
func (p *Problem) SurfaceKey(bounds surface.Bounds, resolution int, k float64) surface.Key {
	key := surface.Key{
		Resolution: resolution,
		Bounds:     bounds,
		Function:   p.Objective.String(),
	}
	if k > 0 && p.Constrained() {
		key.Penalty = fmt.Sprintf("%s[%s]|%s[%s]|k=%g",
			p.config.BoundShape, joinSources(p.Bounds),
			p.config.ConstraintShape, joinSources(p.Constraints), k)
	}
	return key
}

func joinSources(exprs []*expression.Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ";")
}

// ParsePoints pairs up two "v1; v2; ..." lists. Both must have the same
// number of entries; two blank lists yield no points.
func ParsePoints(xs, ys string) ([]optimization.Point, error) {
	x, err := parseList(xs)
	if err != nil {
		return nil, err
	}
	y, err := parseList(ys)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, optimization.InvalidArgumentf("%d x values but %d y values", len(x), len(y)).
			WithComponent("problem").WithOperation("ParsePoints")
	}

	points := make([]optimization.Point, len(x))
	for i := range x {
		points[i] = optimization.Pt(x[i], y[i])
	}
	return points, nil
}

func parseList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Split(s, ";")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, optimization.InvalidArgumentf("bad coordinate %q", f).
				WithComponent("problem").WithOperation("ParsePoints")
		}
		out = append(out, v)
	}
	return out, nil
}

// noSolver stands in for method "none".
type noSolver struct{}

func (noSolver) Name() string { return methods.None.String() }

func (noSolver) SetF(optimization.Func) {}

func (noSolver) LogBatchSize() int { return 1 }

func (noSolver) Solve(context.Context, ...optimization.Point) (*optimization.Result, error) {
	return nil, optimization.InvalidArgumentf("method %q has no solver", methods.None).
		WithComponent("problem").WithOperation("Solve")
}
