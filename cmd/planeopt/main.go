// Command planeopt solves two-variable minimization problems from the
// command line.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
