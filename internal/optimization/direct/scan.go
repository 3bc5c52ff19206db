package direct

import (
	"context"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Scan searches the square box of half-width ScanRadius around the first seed
// with the Mayfly metaheuristic. It is derivative free and not restricted to
// the basin of the seed.
type Scan struct {
	optimization.Base
}

// NewScan creates a scan solver.
func NewScan(settings optimization.Settings) *Scan {
	return &Scan{Base: optimization.NewBase("scan", settings)}
}

// LogBatchSize implements optimization.Solver.
func (s *Scan) LogBatchSize() int {
	return 1
}

// Solve scans the box around start[0] and returns the best point evaluated.
func (s *Scan) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	settings := s.Settings()
	center := start[0]
	best, bestValue := center, s.Eval(center)
	trace.AddPoint(center)
	trace.Logf("0) Start: point = %v; value = %g", center, bestValue)

	evaluations := 0
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		p := center.Add(optimization.Pt(x[0], x[1]))
		v := s.Eval(p)
		evaluations++
		if optimization.Less(v, bestValue) {
			trace.AddPoint(p)
			trace.AddSegment(best, p)
			trace.Logf("%d) Improved: point = %v; value = %g", evaluations, p, v)
			best, bestValue = p, v
		}
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}
	config.ProblemSize = 2
	config.MaxIterations = settings.ScanIterations
	config.NPop = settings.ScanPopulation
	config.LowerBound = -settings.ScanRadius
	config.UpperBound = settings.ScanRadius
	config.Rand = rand.New(rand.NewSource(settings.ScanSeed))

	if _, err := mayfly.Optimize(config); err != nil {
		return nil, optimization.WrapError(err, "mayfly search failed").WithComponent(s.Name()).WithOperation("Solve")
	}
	if err := s.Interrupted(ctx); err != nil {
		return nil, err
	}

	return s.Finish(trace, best, optimization.StatusConverged, settings.ScanIterations, s.LogBatchSize()), nil
}
