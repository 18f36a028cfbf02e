package invoker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Variant is an alternate execution mode applied to recent builds.
type Variant struct {
	Suffix string   `yaml:"suffix"`
	Flags  []string `yaml:"flags"`
}

// Options controls build discovery and execution.
type Options struct {
	BinDir           string    `yaml:"bin_dir"`
	Pattern          string    `yaml:"pattern"`
	Selector         string    `yaml:"selector"`
	Exclude          string    `yaml:"exclude"`
	VariantThreshold string    `yaml:"variant_threshold"`
	Variants         []Variant `yaml:"variants"`
	Workdir          string    `yaml:"workdir"`
	Interpreter      string    `yaml:"interpreter"`
	Parallelism      int       `yaml:"parallelism"`
}

// DefaultOptions matches the layout of the rubylang/all-ruby image.
func DefaultOptions() Options {
	return Options{
		BinDir:           "/all-ruby/bin",
		Pattern:          "ruby-*",
		Selector:         `/ruby-(1\.8|1\.9|2\.\d+|3\.\d+)`,
		Exclude:          `preview|rc`,
		VariantThreshold: "3.4",
		Variants: []Variant{
			{Suffix: "+prism", Flags: []string{"--parser=prism"}},
			{Suffix: "+parse.y", Flags: []string{"--parser=parse.y"}},
		},
		Workdir:     "/",
		Interpreter: "ruby",
	}
}

// LoadOptions reads a YAML file over the defaults. Keys missing from the
// file keep their default value; an empty path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse options file: %w", err)
	}
	return opts, nil
}
