package optimization

import (
	"context"

	"go.uber.org/zap"
)

// Base carries the state every solver shares: the objective, the settings
// and a named logger. Solvers embed it and call Begin and Finish around
// their algorithm.
type Base struct {
	name     string
	f        Func
	settings Settings
	logger   *zap.Logger
}

// NewBase creates the shared solver state for the named method.
func NewBase(name string, settings Settings) Base {
	settings = settings.WithDefaults()
	return Base{
		name:     name,
		settings: settings,
		logger:   settings.Logger.Named(name),
	}
}

// Name returns the method selector.
func (b *Base) Name() string {
	return b.name
}

// SetF sets the objective.
func (b *Base) SetF(f Func) {
	b.f = f
}

// F returns the objective.
func (b *Base) F() Func {
	return b.f
}

// Settings returns the effective settings.
func (b *Base) Settings() Settings {
	return b.settings
}

// Epsilon returns the convergence threshold.
func (b *Base) Epsilon() float64 {
	return b.settings.Epsilon
}

// Logger returns the solver logger.
func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// Eval evaluates the objective at p.
func (b *Base) Eval(p Point) float64 {
	return b.f(p.X, p.Y)
}

// Gradient returns the forward-difference gradient of the objective at p.
func (b *Base) Gradient(p Point) Point {
	return Gradient(b.f, p, b.settings.Epsilon)
}

// Begin validates a solve request and returns a fresh trace for it.
func (b *Base) Begin(ctx context.Context, start []Point) (*Trace, error) {
	const op = "Solve"

	if b.f == nil {
		return nil, WrapError(ErrNoObjective, "cannot solve").WithComponent(b.name).WithOperation(op)
	}
	if len(start) == 0 {
		return nil, InvalidArgumentf("no start points passed to solver").WithComponent(b.name).WithOperation(op)
	}
	if err := b.Interrupted(ctx); err != nil {
		return nil, err
	}

	b.logger.Debug("Starting solve",
		zap.Int("seeds", len(start)),
		zap.Float64("start_x", start[0].X),
		zap.Float64("start_y", start[0].Y),
		zap.Float64("epsilon", b.settings.Epsilon))

	return NewTrace(), nil
}

// Interrupted returns a wrapped context error once ctx is done.
func (b *Base) Interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(err, "solve interrupted").WithComponent(b.name).WithOperation("Solve")
	}
	return nil
}

// Finish packages the trace into a Result.
func (b *Base) Finish(trace *Trace, solution Point, status Status, iterations, batch int) *Result {
	value := b.Eval(solution)

	b.logger.Debug("Solve finished",
		zap.Stringer("status", status),
		zap.Int("iterations", iterations),
		zap.Float64("x", solution.X),
		zap.Float64("y", solution.Y),
		zap.Float64("value", value),
		zap.Int("points", len(trace.Points())))

	return &Result{
		Solution:   solution,
		Value:      value,
		Status:     status,
		Iterations: iterations,
		Points:     trace.Points(),
		Segments:   trace.Segments(),
		Log:        trace.Lines(),
		LogBatch:   batch,
	}
}
