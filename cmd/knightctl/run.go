package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/knight-dfa/knight/dfa"
	"github.com/knight-dfa/knight/ssadriver"
)

var runCmd = &cobra.Command{
	Use:   "run [package pattern]",
	Short: "Load a Go package and walk it through the enabled analyses",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("module", "", "module root to load the package from (module-aware mode)")
	runCmd.Flags().Bool("verbose", false, "log per-function dispatch")
}

func runRun(cmd *cobra.Command, args []string) error {
	var pkgArg string
	if len(args) == 1 {
		pkgArg = args[0]
	}
	cfg, err := loadConfig(cmd, pkgArg)
	if err != nil {
		return err
	}
	if cfg.Package == "" {
		return fmt.Errorf("knightctl: no package pattern given (pass one, or set \"package\" in --config)")
	}
	module, err := cmd.Flags().GetString("module")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	verbose = verbose || cfg.Verbose

	ambient, funcs, err := ssadriver.Load(module, cfg.Package)
	if err != nil {
		return fmt.Errorf("knightctl: %w", err)
	}

	states := dfa.NewStateManager()
	mgr, err := buildManager(ambient, states, cfg)
	if err != nil {
		return err
	}

	dim := color.New(color.Faint)
	drv := ssadriver.New(mgr, states)
	results := make(map[string]dfa.ProgramStateRef, len(funcs))
	start := states.DefaultStateFor(mgr)
	for _, fn := range funcs {
		if verbose {
			dim.Fprintf(cmd.OutOrStdout(), "dispatching %s\n", fn)
		}
		results[fn.String()] = drv.Run(fn, start)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	bold := color.New(color.Bold)
	domain := color.New(color.FgCyan)
	for _, name := range names {
		bold.Println(name)
		states.Get(results[name]).Dump(cmd.OutOrStdout(), func(id dfa.DomainID) string {
			return domain.Sprint(string(mgr.DomainKindOf(id)))
		})
	}
	return nil
}
