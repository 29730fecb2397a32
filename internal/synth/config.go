package synth

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the YAML description of a synthesis run: where the binaries
// and data live, the stellar parameters, the wavelength grid, and the
// post-processing chain.
type RunConfig struct {
	Manager ManagerConfig `yaml:"manager"`

	// SolarReference names the solar composition scale, e.g. "asplund2009".
	SolarReference string `yaml:"solar_reference"`

	Params Params    `yaml:"params"`
	Wave   WaveRange `yaml:"wave"`
	// Step is the wavelength step in angstroms; zero uses the default.
	Step float64 `yaml:"step,omitempty"`

	// Model names the atmosphere file within the manager's InPath.
	Model string `yaml:"model"`
	// MarcsFile marks the model as a native MARCS file.
	MarcsFile bool `yaml:"marcs_file,omitempty"`

	LineLists []string `yaml:"linelists"`

	// Abundances carries individual logeps overrides keyed by element symbol.
	Abundances map[string]float64 `yaml:"abundances,omitempty"`

	// Broadening is the convolution chain applied after synthesis.
	Broadening []Broadening `yaml:"broadening,omitempty"`
}

// Validate checks the config for problems the synthesis stages would only
// surface mid-run.
func (c *RunConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("run config: model atmosphere not set")
	}
	if len(c.LineLists) == 0 {
		return fmt.Errorf("run config: no line lists")
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	if err := c.Wave.Validate(); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	if c.Step < 0 {
		return fmt.Errorf("run config: step must be non-negative, got %g", c.Step)
	}
	for i, br := range c.Broadening {
		if err := br.Validate(); err != nil {
			return fmt.Errorf("run config: broadening step %d: %w", i+1, err)
		}
	}
	return nil
}

// ParseConfig decodes a run config from YAML. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func ParseConfig(r io.Reader) (*RunConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg RunConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and decodes a run config file.
func LoadConfig(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}
