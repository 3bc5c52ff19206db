// Package penalty turns an unconstrained solver into a constrained one with
// the sequential penalty method.
//
// A bound g(x, y) is satisfied while g >= 0. Barrier shapes are infinite on
// and beyond the boundary, the quadratic shape only charges for violation.
package penalty

import (
	"fmt"
	"math"
	"strings"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Shape selects how bound values are turned into a penalty term.
type Shape int

const (
	// Inverse is the barrier (1/k)·Σ 1/g.
	Inverse Shape = iota
	// Logarithmic is the barrier -(1/k)·Σ ln g.
	Logarithmic
	// Quadratic is the exterior penalty k·Σ min(0, g)².
	Quadratic
	// Equality is k·Σ g², for constraints that must hold exactly.
	Equality
)

var shapeNames = map[Shape]string{
	Inverse:     "inverse",
	Logarithmic: "logarithmic",
	Quadratic:   "quadratic",
	Equality:    "equality",
}

// Shapes returns every shape in selector order.
func Shapes() []Shape {
	return []Shape{Inverse, Logarithmic, Quadratic, Equality}
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape resolves a shape by name, case-insensitively.
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range shapeNames {
		if n == name {
			return s, nil
		}
	}
	return 0, optimization.WrapErrorf(optimization.ErrUnknownMethod, "unknown penalty shape %q", name).
		WithComponent("penalty").WithOperation("ParseShape")
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Penalty returns the penalty for the given bound values at scale k. An empty
// list costs nothing.
func (s Shape) Penalty(values []float64, k float64) float64 {
	var sum float64
	switch s {
	case Inverse:
		for _, g := range values {
			if !(g > 0) {
				return math.Inf(1)
			}
			sum += 1 / g
		}
		return sum / k
	case Logarithmic:
		for _, g := range values {
			if !(g > 0) {
				return math.Inf(1)
			}
			sum -= math.Log(g)
		}
		return sum / k
	case Quadratic:
		for _, g := range values {
			if g < 0 {
				sum += g * g
			} else if math.IsNaN(g) {
				return math.NaN()
			}
		}
		return k * sum
	case Equality:
		for _, g := range values {
			sum += g * g
		}
		return k * sum
	}
	return math.NaN()
}
