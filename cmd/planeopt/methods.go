package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/planeopt/internal/optimization/methods"
	"github.com/copyleftdev/planeopt/internal/optimization/penalty"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the minimization methods and penalty shapes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "METHOD\tSTART POINTS")
		for _, m := range methods.All() {
			if m == methods.None {
				continue
			}
			fmt.Fprintf(w, "%s\t%d\n", m, m.MaxSeeds())
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SHAPE")
		for _, s := range penalty.Shapes() {
			fmt.Fprintln(w, s)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(methodsCmd)
}
