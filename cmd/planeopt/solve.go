package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/planeopt/internal/problem"
)

var (
	spec       problem.Spec
	jsonOutput bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Minimize a function",
	Long: `Minimizes the function given by --function. Bounds are feasible where
they evaluate to a non-negative number; constraints must evaluate to zero.`,
	Example: `  planeopt solve -f "(x - 2)^2 + (y + 3)^2" -m powell --start-x 5 --start-y 5
  planeopt solve -f "x^2 + y^2" --bound "x - 5" --bound-shape inverse --start-x 6 --start-y 1`,
	RunE: runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&spec.Function, "function", "f", "", "Objective f(x, y) (required)")
	f.StringVarP(&spec.Method, "method", "m", "", "Method (defaults to OPT_DEFAULT_METHOD)")
	f.StringVar(&spec.StartX, "start-x", "", "Start x coordinates, separated by ';'")
	f.StringVar(&spec.StartY, "start-y", "", "Start y coordinates, separated by ';'")
	f.StringArrayVar(&spec.Bounds, "bound", nil, "Inequality bound g(x, y) >= 0 (repeatable)")
	f.StringVar(&spec.BoundShape, "bound-shape", "", "Penalty shape for bounds")
	f.StringArrayVar(&spec.Constraints, "constraint", nil, "Equality constraint h(x, y) = 0 (repeatable)")
	f.StringVar(&spec.ConstraintShape, "constraint-shape", "", "Penalty shape for constraints")
	f.Float64Var(&spec.Epsilon, "epsilon", 0, "Convergence tolerance")
	f.IntVar(&spec.MaxIterations, "max-iterations", 0, "Iteration cap per solve")
	f.BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	solveCmd.MarkFlagRequired("function")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	defaults, _, err := loadDefaults()
	if err != nil {
		return err
	}

	p, err := problem.Build(spec, defaults)
	if err != nil {
		return err
	}

	slog.Debug("Solving", "function", p.Objective.String(), "method", p.Method.String(),
		"start", fmt.Sprint(p.Start), "constrained", p.Constrained())

	out, err := p.Solve(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("Solved", "method", out.Method.String(), "status", out.Result.Status.String(),
		"iterations", out.Result.Iterations, "duration", out.Duration)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p, out)
	}
	printOutcome(cmd.OutOrStdout(), p, out)
	return nil
}

func printOutcome(w io.Writer, p *problem.Problem, out *problem.Outcome) {
	for _, line := range out.Log() {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	if p.Constrained() {
		for _, it := range out.History {
			fmt.Fprintf(w, "k = %g: %v -> %v, value %g\n", it.K, it.Start, it.Solution, it.Value)
		}
		fmt.Fprintln(w)
	}

	res := out.Result
	fmt.Fprintf(w, "Solution: %v\n", res.Solution)
	fmt.Fprintf(w, "Value:    %g\n", res.Value)
	fmt.Fprintf(w, "Status:   %s after %d iterations\n", res.Status, res.Iterations)
}

type jsonIteration struct {
	K        float64    `json:"k"`
	Solution [2]float64 `json:"solution"`
	Value    float64    `json:"value"`
}

func printJSON(w io.Writer, p *problem.Problem, out *problem.Outcome) error {
	res := out.Result
	doc := struct {
		Method     string          `json:"method"`
		Solution   [2]float64      `json:"solution"`
		Value      float64         `json:"value"`
		Status     string          `json:"status"`
		Iterations int             `json:"iterations"`
		Log        []string        `json:"log"`
		History    []jsonIteration `json:"history,omitempty"`
	}{
		Method:     out.Method.String(),
		Solution:   [2]float64{res.Solution.X, res.Solution.Y},
		Value:      res.Value,
		Status:     res.Status.String(),
		Iterations: res.Iterations,
		Log:        out.Log(),
	}
	if p.Constrained() {
		for _, it := range out.History {
			doc.History = append(doc.History, jsonIteration{
				K:        it.K,
				Solution: [2]float64{it.Solution.X, it.Solution.Y},
				Value:    it.Value,
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
