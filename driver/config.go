// Package driver holds the ambient configuration for an external session
// that drives the dfa core: which analyses to enable, at what log
// verbosity, and which package to analyze. Configuration is a YAML file
// loaded with gopkg.in/yaml.v3 rather than a long flag surface, so a run
// is reproducible from one checked-in file.
package driver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a knightctl run: which analyses to enable
// and how verbosely to log while dispatching them. Analysis-specific
// settings live under AnalysisOptions, keyed by AnalysisKind name, so a
// plug-in analysis can carry its own options without this struct knowing
// about it in advance.
type Config struct {
	// Package is the Go package pattern to load and analyze, e.g.
	// "./..." or "example.com/mod/pkg".
	Package string `yaml:"package"`

	// Enable lists the AnalysisKind names to enable. Privileged analyses
	// registered by the driver always run regardless of this list.
	Enable []string `yaml:"enable"`

	// Verbose turns on per-dispatch diagnostic logging.
	Verbose bool `yaml:"verbose"`

	// AnalysisOptions is a free-form per-analysis settings bag, passed
	// through unparsed: a plug-in analysis that wants structured options
	// re-marshals its own slice under its kind name.
	AnalysisOptions map[string]yaml.Node `yaml:"options"`
}

// Default returns the zero-value Config, with no analyses enabled and
// verbose logging off -- equivalent to running knightctl with every flag
// at its default.
func Default() *Config {
	return &Config{}
}

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("driver: reading config %q: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("driver: parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// AnalysisOption unmarshals the free-form options recorded under kind into
// out. It returns false, nil if kind has no recorded options.
func (c *Config) AnalysisOption(kind string, out interface{}) (bool, error) {
	node, ok := c.AnalysisOptions[kind]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return false, fmt.Errorf("driver: decoding options for %q: %w", kind, err)
	}
	return true, nil
}

// IsEnabled reports whether kind appears in Enable.
func (c *Config) IsEnabled(kind string) bool {
	for _, k := range c.Enable {
		if k == kind {
			return true
		}
	}
	return false
}
