// Package solar provides named solar composition tables and the element
// bookkeeping (symbol canonicalization, atomic numbers, alpha-element set)
// used when assembling abundances for spectrum synthesis.
package solar

import (
	"fmt"
	"strings"
)

// symbols lists element symbols indexed by atomic number minus one, H through U.
var symbols = []string{
	"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca",
	"Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr", "Rb", "Sr", "Y", "Zr",
	"Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn",
	"Sb", "Te", "I", "Xe", "Cs", "Ba", "La", "Ce", "Pr", "Nd",
	"Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb",
	"Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
	"Pa", "U",
}

var numberBySymbol = func() map[string]int {
	m := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		m[sym] = i + 1
	}
	return m
}()

// alphaElements are the even-Z alpha-capture elements scaled together by
// [alpha/Fe] during abundance assembly.
var alphaElements = map[string]bool{
	"O": true, "Ne": true, "Mg": true, "Si": true,
	"S": true, "Ar": true, "Ca": true, "Ti": true,
}

// CanonicalSymbol normalizes an element symbol to its conventional
// capitalization ("fe" and "FE" both become "Fe"). It does not require the
// symbol to name a known element.
func CanonicalSymbol(sym string) string {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return ""
	}
	return strings.ToUpper(sym[:1]) + strings.ToLower(sym[1:])
}

// IsAlpha reports whether the element participates in alpha-element scaling.
func IsAlpha(sym string) bool {
	return alphaElements[CanonicalSymbol(sym)]
}

// AtomicNumber returns the atomic number for an element symbol.
func AtomicNumber(sym string) (int, error) {
	z, ok := numberBySymbol[CanonicalSymbol(sym)]
	if !ok {
		return 0, fmt.Errorf("unknown element symbol %q", sym)
	}
	return z, nil
}

// Symbol returns the element symbol for an atomic number.
func Symbol(z int) (string, error) {
	if z < 1 || z > len(symbols) {
		return "", fmt.Errorf("atomic number %d out of range", z)
	}
	return symbols[z-1], nil
}
