package optimization

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"
)

// DefaultEpsilon is the convergence threshold used when Settings.Epsilon is unset.
const DefaultEpsilon = 0.001

// Func defines the objective being minimized. It may return NaN where the
// function is undefined.
type Func func(x, y float64) float64

// At evaluates f at p.
func (f Func) At(p Point) float64 {
	return f(p.X, p.Y)
}

// Solver defines the interface for the 2D minimization methods
type Solver interface {
	// Name returns the method selector of the solver
	Name() string

	// SetF sets the objective minimized by subsequent calls to Solve
	SetF(f Func)

	// Solve runs the method from one or more seed points. Each call is
	// independent: the returned Result holds only this call's trajectory.
	Solve(ctx context.Context, start ...Point) (*Result, error)

	// LogBatchSize is the number of raw log lines grouped per display entry
	LogBatchSize() int
}

// Settings contains the tunables shared by all solvers. Zero values select
// the method defaults.
type Settings struct {
	// Convergence threshold for step length, bracket width and simplex spread
	Epsilon float64

	// Iteration cap; 0 selects the per-method cap
	MaxIterations int

	// Step scale applied to the gradient
	Rate float64

	// Edge length of the synthesized simplex
	InitialStep float64

	// Scan method: half-width of the search box, population, iterations and seed
	ScanRadius     float64
	ScanPopulation int
	ScanIterations int
	ScanSeed       int64

	// Logger receives per-solve diagnostics; nil disables logging
	Logger *zap.Logger
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Epsilon:        DefaultEpsilon,
		Rate:           0.25,
		InitialStep:    1,
		ScanRadius:     10,
		ScanPopulation: 20,
		ScanIterations: 100,
		ScanSeed:       42,
	}
}

// WithDefaults fills unset fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.Epsilon <= 0 {
		s.Epsilon = d.Epsilon
	}
	if s.Rate <= 0 {
		s.Rate = d.Rate
	}
	if s.InitialStep <= 0 {
		s.InitialStep = d.InitialStep
	}
	if s.ScanRadius <= 0 {
		s.ScanRadius = d.ScanRadius
	}
	if s.ScanPopulation < d.ScanPopulation {
		s.ScanPopulation = d.ScanPopulation
	}
	if s.ScanIterations <= 0 {
		s.ScanIterations = d.ScanIterations
	}
	if s.ScanSeed == 0 {
		s.ScanSeed = d.ScanSeed
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return s
}

// Iterations returns MaxIterations or fallback when it is unset.
func (s Settings) Iterations(fallback int) int {
	if s.MaxIterations > 0 {
		return s.MaxIterations
	}
	return fallback
}

// Result is the record of a single Solve call
type Result struct {
	Solution   Point     `json:"solution"`
	Value      float64   `json:"value"`
	Status     Status    `json:"status"`
	Iterations int       `json:"iterations"`
	Points     []Point   `json:"points"`
	Segments   []Segment `json:"segments"`
	Log        []string  `json:"log"`
	LogBatch   int       `json:"log_batch"`
}

// SolutionLog groups the raw log lines into batches of LogBatch lines.
func (r *Result) SolutionLog() []string {
	return GroupLog(r.Log, r.LogBatch)
}

// GroupLog joins consecutive lines into batches of size n.
func GroupLog(lines []string, n int) []string {
	if n < 1 {
		n = 1
	}
	grouped := make([]string, 0, (len(lines)+n-1)/n)
	for i := 0; i < len(lines); i += n {
		end := i + n
		if end > len(lines) {
			end = len(lines)
		}
		grouped = append(grouped, strings.Join(lines[i:end], " "))
	}
	return grouped
}

// Less reports whether a is a strict improvement over b. NaN is never an
// improvement, and anything finite improves on NaN.
func Less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}
