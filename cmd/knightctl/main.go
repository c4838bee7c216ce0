// Command knightctl is the external driver CLI for the knight data-flow
// engine: it loads a Go package, wires up the registered analyses named in
// a YAML config, walks the loaded program through them, and can render the
// analysis dependency graph for inspection.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "knightctl",
	Short: "Drive the knight data-flow analysis engine over a Go package",
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a knight.yaml config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
