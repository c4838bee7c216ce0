package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/knight-dfa/knight/dfa"
	"github.com/knight-dfa/knight/depgraph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the analysis dependency graph for the enabled analyses",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().String("format", "dot", "output format: dot or svg")
	graphCmd.Flags().String("out", "", "output file (defaults to stdout for dot, required for svg)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}

	states := dfa.NewStateManager()
	mgr, err := buildManager(noopAmbient{}, states, cfg)
	if err != nil {
		return err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	g := depgraph.Build(mgr, "knightctl")

	switch format {
	case "dot":
		dot := g.DOT()
		if out == "" {
			fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		}
		return os.WriteFile(out, []byte(dot), 0o644)
	case "svg":
		if out == "" {
			return fmt.Errorf("knightctl: --out is required for --format=svg")
		}
		svg, err := g.RenderSVG()
		if err != nil {
			return err
		}
		return os.WriteFile(out, svg, 0o644)
	default:
		return fmt.Errorf("knightctl: unknown --format %q (want dot or svg)", format)
	}
}

// noopAmbient satisfies dfa.Ambient for commands that only need a manager's
// registry, never an actual dispatch run.
type noopAmbient struct{}

func (noopAmbient) Name() string { return "knightctl-graph" }
