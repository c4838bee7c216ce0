package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knight-dfa/knight/dfa"
	"github.com/knight-dfa/knight/domains"
	"github.com/knight-dfa/knight/driver"
)

// knownAnalyses maps a driver.Config "enable" name to the constructor for
// the analysis it names. Adding a plug-in analysis to knightctl is adding
// one entry here; nothing else about dispatch changes.
func knownAnalyses(states *dfa.StateManager) map[string]dfa.Analysis {
	return map[string]dfa.Analysis{
		"zeroness": domains.NewZeronessAnalysis(states),
		"interval": domains.NewIntervalAnalysis(states),
	}
}

// loadConfig reads the --config flag, if given, or falls back to
// driver.Default with Package taken from the command's single positional
// argument.
func loadConfig(cmd *cobra.Command, pkgArg string) (*driver.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := driver.Default()
		cfg.Package = pkgArg
		return cfg, nil
	}
	cfg, err := driver.Load(path)
	if err != nil {
		return nil, err
	}
	if pkgArg != "" {
		cfg.Package = pkgArg
	}
	return cfg, nil
}

// buildManager registers every analysis named in cfg.Enable (erroring on an
// unknown name), closes the required set over dependencies, and enables the
// result in dependency order, so the returned manager is ready to dispatch.
func buildManager(ambient dfa.Ambient, states *dfa.StateManager, cfg *driver.Config) (*dfa.AnalysisManager, error) {
	mgr := dfa.NewAnalysisManager(ambient)
	available := knownAnalyses(states)

	for _, name := range cfg.Enable {
		a, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("knightctl: unknown analysis %q", name)
		}
		mgr.MarkRequired(mgr.RegisterAnalysis(a))
	}

	mgr.ComputeRequiredByDependencies()
	if err := mgr.EnableRequiredAnalyses(); err != nil {
		return nil, err
	}
	return mgr, nil
}
