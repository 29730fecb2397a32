package synth

import (
	"fmt"
	"sort"

	"stellarsynth/pkg/abundance"
	"stellarsynth/pkg/solar"
)

// AbundanceSet holds the per-element logeps values fed to the synthesis
// binaries, keyed by atomic number.
type AbundanceSet map[int]float64

// defaultExcluded lists elements whose abundances the synthesis binaries
// derive internally and must not receive as individual entries.
var defaultExcluded = []string{"H", "He"}

// AssembleOptions configures AssembleAbundances.
type AssembleOptions struct {
	// Metals is the overall metallicity [Fe/H] applied to every element.
	Metals float64
	// Alphas is the [alpha/Fe] enhancement applied to the alpha elements.
	Alphas float64
	// Overrides carries individual logeps values that replace the scaled
	// solar values, keyed by element symbol.
	Overrides map[string]float64
	// Exclude lists element symbols left out of the set entirely. When nil,
	// H and He are excluded.
	Exclude []string
}

// AssembleAbundances builds the full element mix for a synthesis: every
// element of the solar composition scaled by the metallicity, alpha elements
// additionally scaled by [alpha/Fe], then individual overrides applied on
// top. Excluded elements are dropped last so an override cannot reintroduce
// them.
func AssembleAbundances(comp solar.Composition, opts AssembleOptions) (AbundanceSet, error) {
	if len(comp) == 0 {
		return nil, fmt.Errorf("empty solar composition")
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = defaultExcluded
	}
	excluded := make(map[string]bool, len(exclude))
	for _, sym := range exclude {
		excluded[solar.CanonicalSymbol(sym)] = true
	}

	scaled := make(map[string]float64, len(comp))
	for sym, v := range comp {
		sym = solar.CanonicalSymbol(sym)
		if sym == "H" || sym == "He" {
			continue
		}
		scaled[sym] = v + opts.Metals
		if solar.IsAlpha(sym) {
			scaled[sym] += opts.Alphas
		}
	}
	for sym, v := range opts.Overrides {
		scaled[solar.CanonicalSymbol(sym)] = v
	}

	out := make(AbundanceSet, len(scaled))
	for sym, v := range scaled {
		if excluded[sym] {
			continue
		}
		z, err := solar.AtomicNumber(sym)
		if err != nil {
			return nil, fmt.Errorf("assemble abundances: %w", err)
		}
		out[z] = v
	}
	return out, nil
}

// OverridesFromStore exports a store's logeps frame as override values for
// AssembleAbundances. The store must have logeps materialized and scalar
// width; the starIndex selects the column of wider stores.
func OverridesFromStore(store *abundance.Store, starIndex int) (map[string]float64, error) {
	values, err := store.Export(abundance.SystemLogEps)
	if err != nil {
		return nil, err
	}
	if starIndex < 0 || starIndex >= store.Width() {
		return nil, fmt.Errorf("star index %d out of range for store width %d", starIndex, store.Width())
	}
	out := make(map[string]float64, len(values))
	for sym, v := range values {
		out[sym] = v[starIndex]
	}
	return out, nil
}

// Sorted returns the atomic numbers in ascending order for deterministic
// deck rendering.
func (a AbundanceSet) Sorted() []int {
	out := make([]int, 0, len(a))
	for z := range a {
		out = append(out, z)
	}
	sort.Ints(out)
	return out
}

// Get returns the logeps value for an element symbol.
func (a AbundanceSet) Get(sym string) (float64, bool) {
	z, err := solar.AtomicNumber(sym)
	if err != nil {
		return 0, false
	}
	v, ok := a[z]
	return v, ok
}

// Set stores a logeps value for an element symbol.
func (a AbundanceSet) Set(sym string, v float64) error {
	z, err := solar.AtomicNumber(sym)
	if err != nil {
		return err
	}
	a[z] = v
	return nil
}

// Symbols returns the set keyed by element symbol instead of atomic number.
func (a AbundanceSet) Symbols() map[string]float64 {
	out := make(map[string]float64, len(a))
	for z, v := range a {
		sym, err := solar.Symbol(z)
		if err != nil {
			continue
		}
		out[sym] = v
	}
	return out
}
