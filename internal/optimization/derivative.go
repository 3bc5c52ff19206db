package optimization

import (
	"gonum.org/v1/gonum/diff/fd"
)

// Axis selects the coordinate a partial derivative is taken along.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Gradient returns the forward-difference gradient of f at p:
// ((f(x+h,y)-f(x,y))/h, (f(x,y+h)-f(x,y))/h) with h = step.
func Gradient(f Func, p Point, step float64) Point {
	g := fd.Gradient(nil, func(x []float64) float64 {
		return f(x[0], x[1])
	}, []float64{p.X, p.Y}, &fd.Settings{
		Formula: fd.Forward,
		Step:    step,
	})
	return Point{X: g[0], Y: g[1]}
}

// Partial returns the forward-difference partial derivative of the given
// order along axis. Order 0 is the function value itself.
func Partial(f Func, p Point, axis Axis, order int, step float64) (float64, error) {
	if order < 0 {
		return 0, InvalidArgumentf("derivative order has to be non-negative, got %d", order).
			WithOperation("Partial")
	}
	return partial(f, p, axis, order, step), nil
}

func partial(f Func, p Point, axis Axis, order int, step float64) float64 {
	if order == 0 {
		return f.At(p)
	}
	shift := Point{X: step}
	if axis == AxisY {
		shift = Point{Y: step}
	}
	return (partial(f, p.Add(shift), axis, order-1, step) - partial(f, p, axis, order-1, step)) / step
}
