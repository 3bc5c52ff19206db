// Package optimizationtest provides objectives and assertions shared by the
// solver tests.
package optimizationtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Bowl returns the convex quadratic (x-cx)² + (y-cy)².
func Bowl(cx, cy float64) optimization.Func {
	return func(x, y float64) float64 {
		return (x-cx)*(x-cx) + (y-cy)*(y-cy)
	}
}

// Sphere is x² + y².
func Sphere(x, y float64) float64 {
	return x*x + y*y
}

// Elliptic is a rotated, badly scaled quadratic with its minimum at (1, -1).
func Elliptic(x, y float64) float64 {
	u := x - 1
	v := y + 1
	return 4*u*u + 2*u*v + v*v
}

// Rosenbrock is the classic banana function with its minimum at (1, 1).
func Rosenbrock(x, y float64) float64 {
	return (1-x)*(1-x) + 100*(y-x*x)*(y-x*x)
}

// Undefined returns NaN for x < 0 and the sphere otherwise.
func Undefined(x, y float64) float64 {
	if x < 0 {
		return math.NaN()
	}
	return x*x + y*y
}

// Counting wraps f and counts its evaluations.
func Counting(f optimization.Func, n *int) optimization.Func {
	return func(x, y float64) float64 {
		*n++
		return f(x, y)
	}
}

// Recording wraps f and records every evaluated point.
func Recording(f optimization.Func, visited *[]optimization.Point) optimization.Func {
	return func(x, y float64) float64 {
		*visited = append(*visited, optimization.Pt(x, y))
		return f(x, y)
	}
}

// AssertPointNear checks that got lies within tol of want.
func AssertPointNear(t *testing.T, want, got optimization.Point, tol float64, msgAndArgs ...interface{}) bool {
	t.Helper()

	ok := assert.InDelta(t, want.X, got.X, tol, msgAndArgs...)
	return assert.InDelta(t, want.Y, got.Y, tol, msgAndArgs...) && ok
}

// AssertTrajectory checks the basic shape invariants of a solve result.
func AssertTrajectory(t *testing.T, res *optimization.Result) {
	t.Helper()

	assert.NotEmpty(t, res.Points, "trajectory should record points")
	assert.NotEmpty(t, res.Log, "trajectory should record log lines")
	assert.Positive(t, res.LogBatch, "log batch size should be positive")
	assert.True(t, res.Solution.IsFinite(), "solution should be finite")
}
