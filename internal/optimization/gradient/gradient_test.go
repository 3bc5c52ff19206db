package gradient

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/optimizationtest"
)

func newSolvers(settings optimization.Settings) map[string]optimization.Solver {
	return map[string]optimization.Solver{
		"gradient":       NewDescent(settings),
		"fast-gradient":  NewFast(settings),
		"chain-gradient": NewChain(settings),
	}
}

func TestSolversConvergeOnBowl(t *testing.T) {
	starts := []optimization.Point{
		optimization.Pt(0, 0),
		optimization.Pt(10, 10),
		optimization.Pt(-7.5, 3.25),
	}

	for name, solver := range newSolvers(optimization.Settings{}) {
		solver.SetF(optimizationtest.Bowl(2, -3))
		for _, start := range starts {
			t.Run(name+" from "+start.String(), func(t *testing.T) {
				res, err := solver.Solve(context.Background(), start)
				require.NoError(t, err)
				optimizationtest.AssertPointNear(t, optimization.Pt(2, -3), res.Solution, 0.01)
				assert.Equal(t, optimization.StatusConverged, res.Status)
				optimizationtest.AssertTrajectory(t, res)
			})
		}
	}
}

func TestSolversConvergeOnElliptic(t *testing.T) {
	for name, solver := range newSolvers(optimization.Settings{Epsilon: 1e-5}) {
		t.Run(name, func(t *testing.T) {
			solver.SetF(optimizationtest.Elliptic)
			res, err := solver.Solve(context.Background(), optimization.Pt(5, 5))
			require.NoError(t, err)
			optimizationtest.AssertPointNear(t, optimization.Pt(1, -1), res.Solution, 0.02)
		})
	}
}

func TestChainNeedsFewIterationsOnQuadratic(t *testing.T) {
	chain := NewChain(optimization.Settings{Epsilon: 1e-5})
	chain.SetF(optimizationtest.Elliptic)
	fast := NewFast(optimization.Settings{Epsilon: 1e-5})
	fast.SetF(optimizationtest.Elliptic)

	cres, err := chain.Solve(context.Background(), optimization.Pt(5, 5))
	require.NoError(t, err)
	fres, err := fast.Solve(context.Background(), optimization.Pt(5, 5))
	require.NoError(t, err)

	assert.LessOrEqual(t, cres.Iterations, fres.Iterations)
	assert.Contains(t, cres.Log[0], "Beta = 0")
}

func TestDescentLog(t *testing.T) {
	solver := NewDescent(optimization.Settings{})
	solver.SetF(optimizationtest.Bowl(2, -3))

	res, err := solver.Solve(context.Background(), optimization.Pt(5, 5))
	require.NoError(t, err)

	// one line per step plus the closing summary
	assert.Len(t, res.Log, res.Iterations+1)
	assert.Len(t, res.Segments, res.Iterations)
	assert.Len(t, res.Points, 2*res.Iterations)
	assert.Contains(t, res.Log[0], "0) Point = (5; 5)")
	assert.Contains(t, res.Log[len(res.Log)-1], "Result: point = ")

	last := res.Segments[len(res.Segments)-1]
	assert.Equal(t, res.Solution, last.B)
}

func TestDescentBacktracksAtUnitRate(t *testing.T) {
	solver := NewDescent(optimization.Settings{Rate: 1, MaxIterations: 50})
	solver.SetF(optimizationtest.Bowl(2, -3))

	res, err := solver.Solve(context.Background(), optimization.Pt(5, 5))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusConverged, res.Status)
	optimizationtest.AssertPointNear(t, optimization.Pt(2, -3), res.Solution, 0.01)
	assert.Contains(t, res.Log[0], "Rate = 0.25")
}

func TestDescentStopsAtIterationLimit(t *testing.T) {
	solver := NewDescent(optimization.Settings{Epsilon: 1e-6, MaxIterations: 3})
	solver.SetF(optimizationtest.Elliptic)

	res, err := solver.Solve(context.Background(), optimization.Pt(5, 5))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusIterationLimit, res.Status)
	assert.Equal(t, 3, res.Iterations)
	assert.Less(t, res.Value, optimizationtest.Elliptic(5, 5))
}

func TestDescentNeverIncreasesObjective(t *testing.T) {
	tests := []struct {
		name  string
		f     optimization.Func
		start optimization.Point
		want  optimization.Point
	}{
		{
			name:  "elliptic",
			f:     optimizationtest.Elliptic,
			start: optimization.Pt(5, 5),
			want:  optimization.Pt(1, -1),
		},
		{
			name: "stiff axis",
			f: func(x, y float64) float64 {
				return 50*x*x + y*y
			},
			start: optimization.Pt(5, 5),
			want:  optimization.Pt(0, 0),
		},
		{
			name: "very stiff axis",
			f: func(x, y float64) float64 {
				return 5000*x*x + y*y
			},
			start: optimization.Pt(-2, 3),
			want:  optimization.Pt(0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := NewDescent(optimization.Settings{})
			solver.SetF(tt.f)

			res, err := solver.Solve(context.Background(), tt.start)
			require.NoError(t, err)
			assert.Equal(t, optimization.StatusConverged, res.Status)
			optimizationtest.AssertPointNear(t, tt.want, res.Solution, 0.02)

			// every accepted step lowers f
			prev := tt.f(tt.start.X, tt.start.Y)
			for _, seg := range res.Segments {
				v := tt.f(seg.B.X, seg.B.Y)
				assert.Less(t, v, prev)
				prev = v
			}
		})
	}
}

func TestDescentStaysInsideBarrier(t *testing.T) {
	// x² + y² + 1/(x-5) is only defined for x > 5
	barrier := func(x, y float64) float64 {
		if x <= 5 {
			return math.Inf(1)
		}
		return x*x + y*y + 1/(x-5)
	}

	for _, start := range []optimization.Point{
		optimization.Pt(6, 1),
		optimization.Pt(9, -4),
		optimization.Pt(5.01, 0),
	} {
		t.Run(start.String(), func(t *testing.T) {
			solver := NewDescent(optimization.Settings{})
			solver.SetF(barrier)

			res, err := solver.Solve(context.Background(), start)
			require.NoError(t, err)
			assert.Equal(t, optimization.StatusConverged, res.Status)
			assert.Greater(t, res.Solution.X, 5.0)
			assert.False(t, math.IsInf(res.Value, 0))
			assert.LessOrEqual(t, res.Value, barrier(start.X, start.Y))
			for _, seg := range res.Segments {
				assert.Greater(t, seg.B.X, 5.0)
			}
		})
	}
}

func TestDescentStopsAtDomainEdge(t *testing.T) {
	solver := NewDescent(optimization.Settings{})
	solver.SetF(func(x, y float64) float64 {
		return math.Sqrt(x) + y*y
	})

	res, err := solver.Solve(context.Background(), optimization.Pt(1, 0))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusConverged, res.Status)
	assert.False(t, math.IsNaN(res.Value))
	assert.GreaterOrEqual(t, res.Solution.X, 0.0)
	assert.Less(t, res.Solution.X, 0.01)
}

func TestDescentFailsOnUndefinedGradient(t *testing.T) {
	solver := NewDescent(optimization.Settings{})
	solver.SetF(optimizationtest.Undefined)

	res, err := solver.Solve(context.Background(), optimization.Pt(-1, 2))
	require.NoError(t, err)
	assert.Equal(t, optimization.StatusNumericFailure, res.Status)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, optimization.Pt(-1, 2), res.Solution)
}

func TestLineMethodsSurviveUndefinedRegion(t *testing.T) {
	for _, solver := range []optimization.Solver{
		NewFast(optimization.Settings{}),
		NewChain(optimization.Settings{}),
	} {
		t.Run(solver.Name(), func(t *testing.T) {
			solver.SetF(optimizationtest.Undefined)
			res, err := solver.Solve(context.Background(), optimization.Pt(3, 2))
			require.NoError(t, err)
			assert.False(t, math.IsNaN(res.Value))
			assert.GreaterOrEqual(t, res.Solution.X, 0.0)
		})
	}
}

func TestSolveIsIdempotent(t *testing.T) {
	for name, solver := range newSolvers(optimization.Settings{}) {
		t.Run(name, func(t *testing.T) {
			solver.SetF(optimizationtest.Elliptic)

			first, err := solver.Solve(context.Background(), optimization.Pt(3, -4))
			require.NoError(t, err)
			second, err := solver.Solve(context.Background(), optimization.Pt(3, -4))
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestSolveRejectsInvalidArguments(t *testing.T) {
	for name, solver := range newSolvers(optimization.Settings{}) {
		t.Run(name, func(t *testing.T) {
			_, err := solver.Solve(context.Background(), optimization.Pt(0, 0))
			assert.True(t, errors.Is(err, optimization.ErrNoObjective))

			solver.SetF(optimizationtest.Sphere)
			_, err = solver.Solve(context.Background())
			assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = solver.Solve(ctx, optimization.Pt(1, 1))
			assert.True(t, errors.Is(err, context.Canceled))
		})
	}
}

func TestSolversUseFirstStartPoint(t *testing.T) {
	for name, solver := range newSolvers(optimization.Settings{}) {
		t.Run(name, func(t *testing.T) {
			solver.SetF(optimizationtest.Sphere)
			res, err := solver.Solve(context.Background(), optimization.Pt(1, 1), optimization.Pt(100, 100))
			require.NoError(t, err)
			require.NotEmpty(t, res.Points)
			assert.Equal(t, optimization.Pt(1, 1), res.Points[0])
		})
	}
}
