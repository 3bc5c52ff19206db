// Package expression compiles user-entered formulas in x and y into
// objectives, bounds and constraints.
//
// Formulas use expr-lang syntax with ^ or ** for powers and the usual
// elementary functions: sin(x*y) + ln(x^2 + 1).
package expression

import (
	"errors"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// ErrSyntax is the kind of every compile failure.
var ErrSyntax = errors.New("syntax error")

// env is the evaluation environment of a formula.
type env struct {
	X  float64 `expr:"x"`
	Y  float64 `expr:"y"`
	Pi float64 `expr:"pi"`
	E  float64 `expr:"e"`
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		return fn(toFloat(params[0])), nil
	}, new(func(float64) float64))
}

func binary(name string, fn func(float64, float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		return fn(toFloat(params[0]), toFloat(params[1])), nil
	}, new(func(float64, float64) float64))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return math.NaN()
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return v
}

var options = []expr.Option{
	expr.Env(env{}),
	expr.AsFloat64(),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("asin", math.Asin),
	unary("acos", math.Acos),
	unary("atan", math.Atan),
	unary("sinh", math.Sinh),
	unary("cosh", math.Cosh),
	unary("tanh", math.Tanh),
	unary("exp", math.Exp),
	unary("ln", math.Log),
	unary("log", math.Log),
	unary("lg", math.Log10),
	unary("log10", math.Log10),
	unary("sqrt", math.Sqrt),
	unary("cbrt", math.Cbrt),
	unary("sign", sign),
	binary("atan2", math.Atan2),
	binary("pow", math.Pow),
	binary("hypot", math.Hypot),
}

// Expression is a compiled formula. It is safe for concurrent use.
type Expression struct {
	source  string
	program *vm.Program
}

// Parse compiles source.
func Parse(source string) (*Expression, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, optimization.WrapError(ErrSyntax, "empty expression").
			WithComponent("expression").WithOperation("Parse")
	}

	program, err := expr.Compile(trimmed, options...)
	if err != nil {
		return nil, optimization.WrapErrorf(ErrSyntax, "%q: %v", trimmed, err).
			WithComponent("expression").WithOperation("Parse")
	}
	return &Expression{source: trimmed, program: program}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(source string) *Expression {
	e, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate reports whether source compiles.
func Validate(source string) error {
	_, err := Parse(source)
	return err
}

// ParseAll compiles every non-blank source, for bound and constraint lists.
func ParseAll(sources []string) ([]*Expression, error) {
	out := make([]*Expression, 0, len(sources))
	for _, s := range sources {
		if strings.TrimSpace(s) == "" {
			continue
		}
		e, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// String returns the trimmed source.
func (e *Expression) String() string {
	return e.source
}

// Eval evaluates the formula at (x, y).
func (e *Expression) Eval(x, y float64) (float64, error) {
	out, err := expr.Run(e.program, env{X: x, Y: y, Pi: math.Pi, E: math.E})
	if err != nil {
		return math.NaN(), optimization.WrapErrorf(err, "evaluating %q", e.source).
			WithComponent("expression").WithOperation("Eval")
	}
	return toFloat(out), nil
}

// Func adapts the formula to an objective. Evaluation errors yield NaN, which
// the solvers treat as an undefined point.
func (e *Expression) Func() optimization.Func {
	return func(x, y float64) float64 {
		v, err := e.Eval(x, y)
		if err != nil {
			return math.NaN()
		}
		return v
	}
}

// Funcs adapts a list of formulas.
func Funcs(exprs []*Expression) []optimization.Func {
	fs := make([]optimization.Func, len(exprs))
	for i, e := range exprs {
		fs[i] = e.Func()
	}
	return fs
}
