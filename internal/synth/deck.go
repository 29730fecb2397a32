package synth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Stage selects which synthesis executable a deck is rendered for.
type Stage string

// Synthesis stages understood by the deck renderer.
const (
	StageBabsma Stage = "babsma" // opacity sampling
	StageBsyn   Stage = "bsyn"   // flux synthesis
	StageEqwidt Stage = "eqwidt" // abundance from equivalent widths
)

// Deck carries everything needed to render the stdin parameter block for one
// synthesis stage. The binaries parse these keyword lines positionally, so
// rendering preserves the exact key order and number formats they expect.
type Deck struct {
	Stage Stage

	LambdaMin  float64
	LambdaMax  float64
	LambdaStep float64

	// Babsma inputs.
	ModelPath string
	MarcsFile bool
	VMicro    float64

	// Bsyn/eqwidt inputs.
	OpacPath   string
	ResultPath string
	Spherical  bool
	LineLists  []string
	Isotopes   IsotopeMix

	// Shared abundance block.
	Metals     float64
	Alphas     float64
	Helium     float64
	RProcess   float64
	SProcess   float64
	Abundances AbundanceSet
}

// Render produces the stdin block for the deck's stage.
func (d Deck) Render() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("'LAMBDA_MIN:'  '%.3f'", d.LambdaMin)
	line("'LAMBDA_MAX:'  '%.3f'", d.LambdaMax)
	line("'LAMBDA_STEP:' '%s'", strconv.FormatFloat(d.LambdaStep, 'g', -1, 64))
	if d.Stage == StageBabsma {
		line("'MODELINPUT:' '%s'", d.ModelPath)
		line("'MARCS-FILE:' '%s'", fortranBool(d.MarcsFile))
	}
	if d.Stage == StageBsyn || d.Stage == StageEqwidt {
		line("'INTENSITY/FLUX:' 'Flux'")
		line("'COS(THETA)    :' '1.00'")
		line("'ABFIND        :' '%s'", fortranBool(d.Stage == StageEqwidt))
	}
	line("'MODELOPAC:' '%s'", d.OpacPath)
	if d.Stage == StageBsyn || d.Stage == StageEqwidt {
		line("'RESULTFILE :' '%s'", d.ResultPath)
	}
	line("'METALLICITY:'    '%.3f'", d.Metals)
	line("'ALPHA/Fe   :'    '%.3f'", d.Alphas)
	line("'HELIUM     :'    '%.3f'", d.Helium)
	line("'R-PROCESS  :'    '%.3f'", d.RProcess)
	line("'S-PROCESS  :'    '%.3f'", d.SProcess)
	line("'INDIVIDUAL ABUNDANCES:'  '%d'", len(d.Abundances))
	for _, z := range d.Abundances.Sorted() {
		line("%d  %.3f", z, d.Abundances[z])
	}
	if d.Stage == StageBsyn || d.Stage == StageEqwidt {
		line("'ISOTOPES:'  '%d'", len(d.Isotopes))
		for _, iso := range d.Isotopes.Sorted() {
			line("%s  %.6f", iso.Code(), d.Isotopes[iso])
		}
	}
	if d.Stage == StageBabsma {
		line("'XIFIX:' 'T'")
		line("%.3f", d.VMicro)
	}
	if d.Stage == StageBsyn || d.Stage == StageEqwidt {
		line("'NFILES:'  '%d'", len(d.LineLists))
		for _, ll := range d.LineLists {
			line("%s", ll)
		}
		line("'SPHERICAL:'  '%s'", sphericalFlag(d.Spherical))
		// Trailing spherical-transfer grid constants the binaries expect.
		line("  30")
		line("  300.00")
		line("  15")
		line("  1.30")
	}
	return b.String()
}

func fortranBool(v bool) string {
	if v {
		return ".true."
	}
	return ".false."
}

func sphericalFlag(v bool) string {
	if v {
		return "T"
	}
	return "F"
}

// WaveRange is an inclusive wavelength interval in angstroms.
type WaveRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Validate rejects empty or inverted ranges.
func (w WaveRange) Validate() error {
	if w.Max <= w.Min {
		return fmt.Errorf("wavelength range [%g, %g] is empty", w.Min, w.Max)
	}
	return nil
}

// Grid widens the range by one step on each side so the end points are
// included in the synthesized grid, mirroring how the binaries sample.
func (w WaveRange) Grid(step float64) (min, max float64) {
	return w.Min - step, w.Max + step
}

// Points returns the number of grid points the widened range spans at the
// given step.
func (w WaveRange) Points(step float64) int {
	if step <= 0 {
		return 0
	}
	min, max := w.Grid(step)
	return int(math.Round((max-min)/step)) + 1
}
