package solar

import (
	"errors"
	"fmt"
	"strings"
)

// Composition maps canonical element symbols to solar logeps values,
// log10(N_X/N_H) + 12.
type Composition map[string]float64

// ErrUnknownReference is returned when a named composition is not in the
// built-in literature tables.
var ErrUnknownReference = errors.New("unknown solar reference")

// Built-in literature composition names accepted by Lookup.
const (
	Asplund2009  = "Asplund2009"
	Asplund2021  = "Asplund2021"
	Grevesse1998 = "Grevesse1998"
)

// Lookup resolves a named literature solar composition. Names are matched
// case-insensitively. The returned composition is a copy and safe to mutate.
func Lookup(name string) (Composition, error) {
	table, ok := references[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReference, name)
	}
	return table.Clone(), nil
}

// Names returns the built-in composition names.
func Names() []string {
	return []string{Asplund2009, Asplund2021, Grevesse1998}
}

// Clone returns an independent copy of the composition.
func (c Composition) Clone() Composition {
	out := make(Composition, len(c))
	for sym, v := range c {
		out[sym] = v
	}
	return out
}

// Value retrieves the logeps value for an element, canonicalizing the symbol.
func (c Composition) Value(sym string) (float64, bool) {
	v, ok := c[CanonicalSymbol(sym)]
	return v, ok
}

var references = map[string]Composition{
	strings.ToLower(Asplund2009):  asplund2009,
	strings.ToLower(Asplund2021):  asplund2021,
	strings.ToLower(Grevesse1998): grevesse1998,
}

// Asplund, Grevesse, Sauval & Scott (2009), photospheric values.
var asplund2009 = Composition{
	"H": 12.00, "He": 10.93, "Li": 1.05, "Be": 1.38, "B": 2.70,
	"C": 8.43, "N": 7.83, "O": 8.69, "F": 4.56, "Ne": 7.93,
	"Na": 6.24, "Mg": 7.60, "Al": 6.45, "Si": 7.51, "P": 5.41,
	"S": 7.12, "Cl": 5.50, "Ar": 6.40, "K": 5.03, "Ca": 6.34,
	"Sc": 3.15, "Ti": 4.95, "V": 3.93, "Cr": 5.64, "Mn": 5.43,
	"Fe": 7.50, "Co": 4.99, "Ni": 6.22, "Cu": 4.19, "Zn": 4.56,
	"Ga": 3.04, "Ge": 3.65, "Rb": 2.52, "Sr": 2.87, "Y": 2.21,
	"Zr": 2.58, "Nb": 1.46, "Mo": 1.88, "Ru": 1.75, "Rh": 0.91,
	"Pd": 1.57, "Ag": 0.94, "In": 0.80, "Sn": 2.04, "Ba": 2.18,
	"La": 1.10, "Ce": 1.58, "Pr": 0.72, "Nd": 1.42, "Sm": 0.96,
	"Eu": 0.52, "Gd": 1.07, "Tb": 0.30, "Dy": 1.10, "Ho": 0.48,
	"Er": 0.92, "Tm": 0.10, "Yb": 0.84, "Lu": 0.10, "Hf": 0.85,
	"W": 0.85, "Os": 1.40, "Ir": 1.38, "Au": 0.92, "Pb": 1.75,
	"Th": 0.02,
}

// Asplund, Amarsi & Grevesse (2021), photospheric values.
var asplund2021 = Composition{
	"H": 12.00, "He": 10.914, "Li": 0.96, "Be": 1.38, "B": 2.70,
	"C": 8.46, "N": 7.83, "O": 8.69, "F": 4.40, "Ne": 8.06,
	"Na": 6.22, "Mg": 7.55, "Al": 6.43, "Si": 7.51, "P": 5.41,
	"S": 7.12, "Cl": 5.31, "Ar": 6.38, "K": 5.07, "Ca": 6.30,
	"Sc": 3.14, "Ti": 4.97, "V": 3.90, "Cr": 5.62, "Mn": 5.42,
	"Fe": 7.46, "Co": 4.94, "Ni": 6.20, "Cu": 4.18, "Zn": 4.56,
	"Sr": 2.83, "Y": 2.21, "Zr": 2.59, "Ba": 2.27, "La": 1.11,
	"Ce": 1.58, "Pr": 0.75, "Nd": 1.42, "Sm": 0.95, "Eu": 0.52,
}

// Grevesse & Sauval (1998), photospheric values.
var grevesse1998 = Composition{
	"H": 12.00, "He": 10.93, "Li": 1.10, "Be": 1.40, "B": 2.55,
	"C": 8.52, "N": 7.92, "O": 8.83, "F": 4.56, "Ne": 8.08,
	"Na": 6.33, "Mg": 7.58, "Al": 6.47, "Si": 7.55, "P": 5.45,
	"S": 7.33, "Cl": 5.50, "Ar": 6.40, "K": 5.12, "Ca": 6.36,
	"Sc": 3.17, "Ti": 5.02, "V": 4.00, "Cr": 5.67, "Mn": 5.39,
	"Fe": 7.50, "Co": 4.92, "Ni": 6.25, "Cu": 4.21, "Zn": 4.60,
	"Sr": 2.97, "Y": 2.24, "Zr": 2.60, "Ba": 2.13, "Eu": 0.51,
}
