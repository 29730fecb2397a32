package synth

import (
	"fmt"
	"sort"
)

// Isotope identifies a nuclide by atomic number and mass number. In the
// synthesis decks it is written as Z.MMM, e.g. 6.012 for carbon-12.
type Isotope struct {
	Z    int
	Mass int
}

// Code renders the deck notation for the isotope.
func (i Isotope) Code() string {
	return fmt.Sprintf("%d.%03d", i.Z, i.Mass)
}

// MajorFraction converts a major/minor number ratio into the major isotope's
// fraction of the element, e.g. a 12C/13C ratio of 15 gives 15/16.
func MajorFraction(ratio float64) float64 { return ratio / (ratio + 1) }

// MinorFraction converts a major/minor number ratio into the minor isotope's
// fraction of the element.
func MinorFraction(ratio float64) float64 { return 1 / (ratio + 1) }

// IsotopeMix maps isotopes to their number fractions. Fractions for a given
// element are expected to sum to one.
type IsotopeMix map[Isotope]float64

// SetRatio stores the fractions for a two-isotope element from its
// major/minor number ratio.
func (m IsotopeMix) SetRatio(major, minor Isotope, ratio float64) {
	m[major] = MajorFraction(ratio)
	m[minor] = MinorFraction(ratio)
}

// Set overrides a single isotope fraction.
func (m IsotopeMix) Set(iso Isotope, fraction float64) {
	m[iso] = fraction
}

// Merge copies the fractions from another mix over this one.
func (m IsotopeMix) Merge(other IsotopeMix) {
	for iso, frac := range other {
		m[iso] = frac
	}
}

// Sorted returns the isotopes ordered by atomic number then mass, so decks
// render deterministically.
func (m IsotopeMix) Sorted() []Isotope {
	out := make([]Isotope, 0, len(m))
	for iso := range m {
		out = append(out, iso)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].Mass < out[j].Mass
	})
	return out
}
