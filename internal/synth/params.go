// Package synth drives the external spectrum-synthesis executables: the
// opacity and synthesis stages (babsma_lu, bsyn_lu, eqwidt_lu) and the
// convolution tool (faltbon). It formats their stdin parameter decks,
// assembles per-element abundances from a solar composition, and manages the
// working-directory conventions the binaries expect.
package synth

import "fmt"

// Params holds the stellar parameters of a synthesis.
type Params struct {
	Teff    float64 `yaml:"teff"`
	LogG    float64 `yaml:"logg"`
	FeH     float64 `yaml:"feh"`
	VMicro  float64 `yaml:"vmicro"`
	CFe     float64 `yaml:"cfe"`
	AlphaFe float64 `yaml:"alphafe"`
}

// Validate rejects parameter sets the synthesis binaries cannot handle.
func (p Params) Validate() error {
	if p.Teff <= 0 {
		return fmt.Errorf("teff must be positive, got %g", p.Teff)
	}
	if p.VMicro < 0 {
		return fmt.Errorf("vmicro must be non-negative, got %g", p.VMicro)
	}
	return nil
}

// Spherical reports whether spherical radiative transfer should be used.
// Giants (logg < 3.5) are synthesized with spherical geometry.
func (p Params) Spherical() bool { return p.LogG < 3.5 }

// Giant reports whether the star sits on the giant branch for the purpose of
// default isotope ratios (logg < 3.8).
func (p Params) Giant() bool { return p.LogG < 3.8 }

// Default light-element isotope ratios: 12C/13C is 15 for giants and 90 for
// dwarfs; 14N/15N is 330 everywhere.
const (
	giantCarbonRatio   = 15.0
	dwarfCarbonRatio   = 90.0
	defaultNitrogenN15 = 330.0
)

// DefaultIsotopes returns the conventional C and N isotope mix for the
// stellar parameters.
func (p Params) DefaultIsotopes() IsotopeMix {
	c12c13 := dwarfCarbonRatio
	if p.Giant() {
		c12c13 = giantCarbonRatio
	}
	mix := IsotopeMix{}
	mix.SetRatio(Isotope{Z: 6, Mass: 12}, Isotope{Z: 6, Mass: 13}, c12c13)
	mix.SetRatio(Isotope{Z: 7, Mass: 14}, Isotope{Z: 7, Mass: 15}, defaultNitrogenN15)
	return mix
}
