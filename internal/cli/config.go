package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML file named by --config. Flags given on the
// command line take precedence over it.
type Config struct {
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
	Mask    string `yaml:"mask"` // default for dump --mask
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) apply(cmd *cobra.Command, opts *RootOptions) {
	flags := cmd.Flags()
	if c.Format != "" && !flags.Changed("format") {
		opts.Format = c.Format
	}
	if c.Verbose && !flags.Changed("verbose") {
		opts.Verbose = true
	}
	opts.Mask = c.Mask
}
