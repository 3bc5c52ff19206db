// Package methods maps method selectors to solver implementations.
package methods

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/direct"
	"github.com/copyleftdev/planeopt/internal/optimization/gradient"
)

// Method is the closed set of selectable solvers.
type Method int

const (
	// None selects no solver; used when only the surface is wanted.
	None Method = iota
	GaussSeidel
	Powell
	Gradient
	ChainGradient
	FastGradient
	Simplex
	Scan
)

var methodNames = map[Method]string{
	None:          "none",
	GaussSeidel:   "gauss-seidel",
	Powell:        "powell",
	Gradient:      "gradient",
	ChainGradient: "chain-gradient",
	FastGradient:  "fast-gradient",
	Simplex:       "simplex",
	Scan:          "scan",
}

// aliases accepts the spellings used by older clients.
var aliases = map[string]Method{
	"gauss_seidel":   GaussSeidel,
	"coordinate":     GaussSeidel,
	"chain_gradient": ChainGradient,
	"conjugate":      ChainGradient,
	"fast_gradient":  FastGradient,
	"nelder-mead":    Simplex,
	"mayfly":         Scan,
}

// All returns every method in selector order.
func All() []Method {
	return []Method{None, GaussSeidel, Powell, Gradient, ChainGradient, FastGradient, Simplex, Scan}
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Parse resolves a selector, case-insensitively.
func Parse(name string) (Method, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	if m, ok := aliases[name]; ok {
		return m, nil
	}
	return None, optimization.WrapErrorf(optimization.ErrUnknownMethod, "unknown method %q", name).
		WithComponent("methods").WithOperation("Parse")
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MaxSeeds is the number of start points the method consumes.
func (m Method) MaxSeeds() int {
	switch m {
	case None:
		return 0
	case Simplex:
		return 3
	default:
		return 1
	}
}

// New creates the solver for m.
func New(m Method, settings optimization.Settings) (optimization.Solver, error) {
	switch m {
	case GaussSeidel:
		return direct.NewGaussSeidel(settings), nil
	case Powell:
		return direct.NewPowell(settings), nil
	case Gradient:
		return gradient.NewDescent(settings), nil
	case ChainGradient:
		return gradient.NewChain(settings), nil
	case FastGradient:
		return gradient.NewFast(settings), nil
	case Simplex:
		return direct.NewSimplex(settings), nil
	case Scan:
		return direct.NewScan(settings), nil
	case None:
		return nil, optimization.InvalidArgumentf("method %q has no solver", m).
			WithComponent("methods").WithOperation("New")
	}
	return nil, optimization.WrapErrorf(optimization.ErrUnknownMethod, "unknown method %s", m).
		WithComponent("methods").WithOperation("New")
}
