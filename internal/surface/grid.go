// Package surface samples an objective over a regular grid for contour views
// and memoizes the result.
package surface

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Bounds is the sampled rectangle.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Validate checks that the rectangle is finite and not empty.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.MinX, b.MaxX, b.MinY, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return optimization.InvalidArgumentf("bounds must be finite").
				WithComponent("surface").WithOperation("Validate")
		}
	}
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return optimization.InvalidArgumentf("empty bounds [%g, %g] x [%g, %g]", b.MinX, b.MaxX, b.MinY, b.MaxY).
			WithComponent("surface").WithOperation("Validate")
	}
	return nil
}

// Grid holds f sampled at Resolution×Resolution points. Row i is
// y = MinY + i·dy, column j is x = MinX + j·dx.
type Grid struct {
	Bounds     Bounds
	Resolution int
	Values     *mat.Dense

	// Min and Max are taken over the finite samples; NaN when there are none
	Min float64
	Max float64
}

// Step returns the sample spacing along x and y.
func (g *Grid) Step() (dx, dy float64) {
	n := float64(g.Resolution - 1)
	return (g.Bounds.MaxX - g.Bounds.MinX) / n, (g.Bounds.MaxY - g.Bounds.MinY) / n
}

// Point returns the coordinates of sample (i, j).
func (g *Grid) Point(i, j int) optimization.Point {
	dx, dy := g.Step()
	return optimization.Pt(g.Bounds.MinX+float64(j)*dx, g.Bounds.MinY+float64(i)*dy)
}

// At returns the value of sample (i, j).
func (g *Grid) At(i, j int) float64 {
	return g.Values.At(i, j)
}

// Rows returns the samples row by row, for encoding.
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.Resolution)
	for i := range rows {
		rows[i] = mat.Row(nil, i, g.Values)
	}
	return rows
}

// Evaluate samples f over bounds. When dst is non-nil and has the right shape
// it is filled in place.
func Evaluate(ctx context.Context, f optimization.Func, bounds Bounds, resolution int, dst *mat.Dense) (*Grid, error) {
	const op = "Evaluate"

	if f == nil {
		return nil, optimization.WrapError(optimization.ErrNoObjective, "cannot sample").
			WithComponent("surface").WithOperation(op)
	}
	if resolution < 2 {
		return nil, optimization.InvalidArgumentf("resolution %d is below 2", resolution).
			WithComponent("surface").WithOperation(op)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	if dst == nil {
		dst = mat.NewDense(resolution, resolution, nil)
	} else if r, c := dst.Dims(); r != resolution || c != resolution {
		return nil, optimization.InvalidArgumentf("destination is %dx%d, want %dx%d", r, c, resolution, resolution).
			WithComponent("surface").WithOperation(op)
	}

	g := &Grid{Bounds: bounds, Resolution: resolution, Values: dst}
	dx, dy := g.Step()
	finite := make([]float64, 0, resolution*resolution)
	for i := 0; i < resolution; i++ {
		if err := ctx.Err(); err != nil {
			return nil, optimization.WrapError(err, "sampling interrupted").WithComponent("surface").WithOperation(op)
		}
		y := bounds.MinY + float64(i)*dy
		for j := 0; j < resolution; j++ {
			v := f(bounds.MinX+float64(j)*dx, y)
			dst.Set(i, j, v)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
	}

	g.Min, g.Max = math.NaN(), math.NaN()
	if len(finite) > 0 {
		g.Min, g.Max = floats.Min(finite), floats.Max(finite)
	}
	return g, nil
}
