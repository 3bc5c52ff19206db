package main

import (
	"encoding/csv"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/problem"
	"github.com/copyleftdev/planeopt/internal/surface"
)

var (
	surfaceSpec problem.Spec
	region      surface.Bounds
	resolution  int
	penaltyK    float64
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Sample a function over a rectangle as CSV",
	Long: `Samples the function, optionally augmented with its penalties at scale
--k, and writes one CSV row per grid row with columns x, y, value.`,
	RunE: runSurface,
}

func init() {
	f := surfaceCmd.Flags()
	f.StringVarP(&surfaceSpec.Function, "function", "f", "", "Function f(x, y) (required)")
	f.StringArrayVar(&surfaceSpec.Bounds, "bound", nil, "Inequality bound g(x, y) >= 0 (repeatable)")
	f.StringVar(&surfaceSpec.BoundShape, "bound-shape", "", "Penalty shape for bounds")
	f.StringArrayVar(&surfaceSpec.Constraints, "constraint", nil, "Equality constraint h(x, y) = 0 (repeatable)")
	f.StringVar(&surfaceSpec.ConstraintShape, "constraint-shape", "", "Penalty shape for constraints")
	f.Float64Var(&region.MinX, "min-x", -5, "Left edge")
	f.Float64Var(&region.MaxX, "max-x", 5, "Right edge")
	f.Float64Var(&region.MinY, "min-y", -5, "Bottom edge")
	f.Float64Var(&region.MaxY, "max-y", 5, "Top edge")
	f.IntVar(&resolution, "resolution", 21, "Samples per axis")
	f.Float64Var(&penaltyK, "k", 0, "Penalty scale; 0 samples the raw function")

	surfaceCmd.MarkFlagRequired("function")
	rootCmd.AddCommand(surfaceCmd)
}

func runSurface(cmd *cobra.Command, args []string) error {
	defaults, cfg, err := loadDefaults()
	if err != nil {
		return err
	}
	if cfg.Surface.MaxResolution > 0 && resolution > cfg.Surface.MaxResolution {
		return optimization.InvalidArgumentf("resolution %d exceeds %d", resolution, cfg.Surface.MaxResolution)
	}

	p, err := problem.Build(surfaceSpec, defaults)
	if err != nil {
		return err
	}

	g, err := surface.Evaluate(cmd.Context(), p.Augmented(penaltyK), region, resolution, nil)
	if err != nil {
		return err
	}

	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"x", "y", "value"}); err != nil {
		return err
	}
	for i := 0; i < g.Resolution; i++ {
		for j := 0; j < g.Resolution; j++ {
			pt := g.Point(i, j)
			if err := w.Write([]string{
				strconv.FormatFloat(pt.X, 'g', -1, 64),
				strconv.FormatFloat(pt.Y, 'g', -1, 64),
				strconv.FormatFloat(g.At(i, j), 'g', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
