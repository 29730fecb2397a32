package synth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Broadening profiles understood by the convolution tool.
const (
	ProfileExponential      = 1
	ProfileGaussian         = 2
	ProfileRadialTangential = 3
	ProfileRotational       = 4
)

// Broadening describes one convolution pass over a synthesized spectrum.
// Exactly one of FWHM (milliangstroms) or Velocity (km/s) must be set; the
// tool distinguishes the two by the sign of the value it reads.
type Broadening struct {
	Profile  int     `yaml:"profile"`
	FWHM     float64 `yaml:"fwhm,omitempty"`
	Velocity float64 `yaml:"velocity,omitempty"`
}

// Validate rejects broadening steps the convolution tool cannot perform.
func (br Broadening) Validate() error {
	if br.Profile < ProfileExponential || br.Profile > ProfileRotational {
		return fmt.Errorf("broadening profile must be 1..4, got %d", br.Profile)
	}
	if (br.FWHM > 0) == (br.Velocity > 0) {
		return fmt.Errorf("broadening requires exactly one of fwhm or velocity")
	}
	return nil
}

// value renders the broadening magnitude in the tool's sign convention:
// positive for a width in milliangstroms, negative for a velocity in km/s.
func (br Broadening) value() float64 {
	if br.Velocity > 0 {
		return -br.Velocity
	}
	return br.FWHM
}

// Convolver runs the external convolution tool over spectra in OutPath.
type Convolver struct {
	// OutPath holds the input spectra and receives the convolved files.
	OutPath string
	// FaltbonPath is the convolution executable; defaults to "faltbon" in
	// the working directory.
	FaltbonPath string
	// Verbose forwards the tool's output to stdout/stderr.
	Verbose bool
}

// deck renders the tool's stdin block: input file, output file, broadening
// value, profile number.
func (c *Convolver) deck(in, out string, br Broadening) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", in)
	fmt.Fprintf(&b, "%s\n", out)
	fmt.Fprintf(&b, "%g\n", br.value())
	fmt.Fprintf(&b, "%d\n", br.Profile)
	return b.String()
}

// Convolve applies one broadening step to the named spectrum file and
// returns the output file name within OutPath. An empty result name appends
// ".conv" to the input name.
func (c *Convolver) Convolve(ctx context.Context, specFile, resultName string, br Broadening) (string, error) {
	if err := br.Validate(); err != nil {
		return "", err
	}
	if resultName == "" {
		resultName = specFile + ".conv"
	}
	exe := c.FaltbonPath
	if exe == "" {
		exe = "./faltbon"
	}
	in := filepath.Join(c.OutPath, specFile)
	out := filepath.Join(c.OutPath, resultName)
	if err := runCommand(ctx, exe, c.OutPath, c.deck(in, out, br), c.Verbose); err != nil {
		return "", fmt.Errorf("convolve %s: %w", specFile, err)
	}
	return resultName, nil
}

// ConvolveChain applies a sequence of broadening steps, feeding each step's
// output into the next. Intermediate files are numbered; the final file
// carries the plain ".conv" suffix.
func (c *Convolver) ConvolveChain(ctx context.Context, specFile string, steps []Broadening) (string, error) {
	if len(steps) == 0 {
		return "", fmt.Errorf("convolve chain requires at least one broadening step")
	}
	current := specFile
	for i, br := range steps {
		name := fmt.Sprintf("%s.conv%d", specFile, i+1)
		if i == len(steps)-1 {
			name = specFile + ".conv"
		}
		out, err := c.Convolve(ctx, current, name, br)
		if err != nil {
			return "", err
		}
		current = out
	}
	return current, nil
}
