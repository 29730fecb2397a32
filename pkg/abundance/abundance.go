// Package abundance converts elemental abundances between reference frames:
// absolute logarithmic abundance (logeps), abundance relative to hydrogen
// ([X/H]), and abundance relative to an arbitrary reference element
// normalized to a solar composition ([X/ref]).
//
// A Store tracks a fixed element set and one or more simultaneously
// materialized systems. Values are vectorized so a single store can carry
// abundances for several stars sharing the same element set. Conversions
// follow the allowed paths logeps <-> h (requires a solar composition) and
// h <-> ref(E); logeps <-> ref(E) composes through h.
package abundance

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"stellarsynth/pkg/solar"
)

// Value holds one abundance per star or spectrum, in log base 10. Every
// element in a store carries a Value of the same width.
type Value []float64

// Scalar wraps a single abundance in a width-1 Value.
func Scalar(v float64) Value { return Value{v} }

// Clone returns an independent copy of the value.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// System tags a reference frame: SystemLogEps, SystemH, or a lower-cased
// element symbol for [X/element] frames.
type System string

// Anchor frames every store can hold.
const (
	// SystemLogEps is the absolute frame, log10(N_X/N_H) + 12.
	SystemLogEps System = "logeps"
	// SystemH is the hydrogen-relative frame, [X/H] = logeps(X) - logeps_solar(X).
	SystemH System = "h"
)

// ParseSystem normalizes a tag or element symbol into a System.
func ParseSystem(tag string) System {
	return System(strings.ToLower(strings.TrimSpace(tag)))
}

// RefSystem returns the [X/element] system tag for a reference element.
func RefSystem(element string) System {
	return System(strings.ToLower(solar.CanonicalSymbol(element)))
}

// IsElement reports whether the system is an element-relative frame.
func (s System) IsElement() bool {
	return s != SystemLogEps && s != SystemH && s != ""
}

// Element returns the canonical symbol of an element-relative frame, or ""
// for the anchor frames.
func (s System) Element() string {
	if !s.IsElement() {
		return ""
	}
	return solar.CanonicalSymbol(string(s))
}

// ErrMissingAbundances reports construction without any input data.
var ErrMissingAbundances = errors.New("no abundances provided")

// ErrInconsistentState reports a store with neither logeps nor h materialized
// when a solar-reference change was requested.
var ErrInconsistentState = errors.New("neither logeps nor h materialized")

// InvalidReferenceError reports a declared reference element that is not
// among the supplied abundances.
type InvalidReferenceError struct {
	Reference string
}

func (e InvalidReferenceError) Error() string {
	return fmt.Sprintf("reference element %q is not among the provided abundances", e.Reference)
}

// NotMaterializedError reports a request against a system that has not been
// computed yet. It is the advisory "not ready" signal: callers distinguish it
// from hard failures with errors.As.
type NotMaterializedError struct {
	System System
}

func (e NotMaterializedError) Error() string {
	return fmt.Sprintf("system %q has not been materialized; set a solar reference or materialize it first", e.System)
}

// Store holds a fixed element set with values in one or more materialized
// reference systems. It is not safe for concurrent mutation; treat
// SetSolarReference and Materialize as exclusive-access operations.
type Store struct {
	elements     []string                    // canonical symbols, sorted
	width        int                         // vector width shared by all values
	values       map[string]map[System]Value // element -> system -> value
	materialized map[System]bool
	solarName    string
	solarComp    solar.Composition
}

// New constructs a store from raw abundances declared in the given input
// system. The input system is either SystemLogEps, SystemH, or an element
// symbol present among the abundance keys; in the element-anchored case the
// reference element's own raw value is taken as its [E/H] value and the full
// h system is derived immediately.
func New(abund map[string]Value, input System) (*Store, error) {
	if len(abund) == 0 {
		return nil, ErrMissingAbundances
	}
	input = ParseSystem(string(input))

	s := &Store{
		values:       make(map[string]map[System]Value, len(abund)),
		materialized: make(map[System]bool),
		width:        -1,
	}
	for raw, v := range abund {
		sym := solar.CanonicalSymbol(raw)
		if sym == "" {
			return nil, fmt.Errorf("empty element symbol in abundances")
		}
		if _, dup := s.values[sym]; dup {
			return nil, fmt.Errorf("duplicate element %q in abundances", sym)
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("empty abundance vector for element %q", sym)
		}
		if s.width == -1 {
			s.width = len(v)
		} else if len(v) != s.width {
			return nil, fmt.Errorf("abundance vector for %q has width %d, want %d", sym, len(v), s.width)
		}
		s.values[sym] = map[System]Value{}
		s.elements = append(s.elements, sym)
	}
	sort.Strings(s.elements)

	switch {
	case input == SystemLogEps || input == SystemH:
		for raw, v := range abund {
			s.values[solar.CanonicalSymbol(raw)][input] = v.Clone()
		}
		s.materialized[input] = true
	default:
		ref := input.Element()
		if _, ok := s.values[ref]; !ok {
			return nil, InvalidReferenceError{Reference: ref}
		}
		// The reference element anchors the h frame with its own raw value;
		// everything else is stored relative to it.
		for raw, v := range abund {
			sym := solar.CanonicalSymbol(raw)
			if sym == ref {
				s.values[sym][SystemH] = v.Clone()
			} else {
				s.values[sym][input] = v.Clone()
			}
		}
		s.materialized[input] = true
		s.refToH(input)
	}

	s.autoMaterializeFe()
	return s, nil
}

// NewWithSolar constructs a store and immediately applies a named solar
// reference.
func NewWithSolar(abund map[string]Value, input System, solarRef string) (*Store, error) {
	s, err := New(abund, input)
	if err != nil {
		return nil, err
	}
	if err := s.SetSolarReference(solarRef); err != nil {
		return nil, err
	}
	return s, nil
}

// Elements returns the tracked element symbols in sorted order.
func (s *Store) Elements() []string {
	return append([]string(nil), s.elements...)
}

// Width returns the shared abundance vector width.
func (s *Store) Width() int { return s.width }

// SolarReference returns the name of the current solar composition, or ""
// when none has been set.
func (s *Store) SolarReference() string { return s.solarName }

// Materialized returns the currently materialized system tags in sorted order.
func (s *Store) Materialized() []System {
	out := make([]System, 0, len(s.materialized))
	for sys := range s.materialized {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsMaterialized reports whether the system has values for every element.
func (s *Store) IsMaterialized(sys System) bool {
	return s.materialized[ParseSystem(string(sys))]
}

// SetSolarReference resolves a named literature composition and rebases the
// store on it. With logeps materialized the h frame is refreshed and every
// other materialized element-relative frame is re-derived from the new h
// values; with only h materialized the logeps frame is derived instead.
func (s *Store) SetSolarReference(name string) error {
	comp, err := solar.Lookup(name)
	if err != nil {
		return err
	}
	return s.applySolar(strings.ToLower(strings.TrimSpace(name)), comp)
}

// SetSolarComposition rebases the store on a caller-supplied composition
// table under the given name.
func (s *Store) SetSolarComposition(name string, comp solar.Composition) error {
	if len(comp) == 0 {
		return fmt.Errorf("empty solar composition %q", name)
	}
	canon := make(solar.Composition, len(comp))
	for sym, v := range comp {
		canon[solar.CanonicalSymbol(sym)] = v
	}
	return s.applySolar(strings.ToLower(strings.TrimSpace(name)), canon)
}

func (s *Store) applySolar(name string, comp solar.Composition) error {
	for _, sym := range s.elements {
		if _, ok := comp[sym]; !ok {
			return fmt.Errorf("solar composition %q has no value for tracked element %q", name, sym)
		}
	}

	switch {
	case s.materialized[SystemLogEps]:
		s.logepsToH(comp)
		for _, sys := range s.Materialized() {
			if sys.IsElement() {
				s.hToRef(sys.Element())
			}
		}
	case s.materialized[SystemH]:
		s.hToLogeps(comp)
	default:
		return ErrInconsistentState
	}

	s.solarName = name
	s.solarComp = comp.Clone()
	s.autoMaterializeFe()
	return nil
}

// Materialize computes the [X/ref] frame for a reference element from the h
// frame. It returns NotMaterializedError when h is unavailable and
// InvalidReferenceError when the element is not tracked.
func (s *Store) Materialize(sys System) error {
	sys = ParseSystem(string(sys))
	if sys == SystemLogEps || sys == SystemH {
		if s.materialized[sys] {
			return nil
		}
		return NotMaterializedError{System: sys}
	}
	if !s.materialized[SystemH] {
		return NotMaterializedError{System: SystemH}
	}
	ref := sys.Element()
	if _, ok := s.values[ref]; !ok {
		return InvalidReferenceError{Reference: ref}
	}
	s.hToRef(ref)
	return nil
}

// Export returns the per-element values in the requested system. The
// reference element of an element-relative frame exports its own [E/H]
// value, matching the construction-time anchor convention. A system that has
// not been materialized yields NotMaterializedError.
func (s *Store) Export(sys System) (map[string]Value, error) {
	sys = ParseSystem(string(sys))
	if !s.materialized[sys] {
		return nil, NotMaterializedError{System: sys}
	}
	out := make(map[string]Value, len(s.elements))
	for _, sym := range s.elements {
		v, err := s.value(sym, sys)
		if err != nil {
			return nil, err
		}
		out[sym] = v.Clone()
	}
	return out, nil
}

// Value returns a single element's abundance in the requested system,
// applying the same anchor convention as Export.
func (s *Store) Value(element string, sys System) (Value, error) {
	sys = ParseSystem(string(sys))
	if !s.materialized[sys] {
		return nil, NotMaterializedError{System: sys}
	}
	sym := solar.CanonicalSymbol(element)
	if _, ok := s.values[sym]; !ok {
		return nil, InvalidReferenceError{Reference: sym}
	}
	v, err := s.value(sym, sys)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

func (s *Store) value(sym string, sys System) (Value, error) {
	lookup := sys
	if sys.IsElement() && sys.Element() == sym {
		lookup = SystemH
	}
	v, ok := s.values[sym][lookup]
	if !ok {
		return nil, fmt.Errorf("internal: no %q value for element %q", lookup, sym)
	}
	return v, nil
}

// refToH derives the h frame from an element-anchored frame: the reference
// element already holds its h value, so x_h = x_ref + ref_h.
func (s *Store) refToH(refSys System) {
	ref := refSys.Element()
	refH := s.values[ref][SystemH]
	for _, sym := range s.elements {
		if sym == ref {
			continue
		}
		s.values[sym][SystemH] = addValues(s.values[sym][refSys], refH)
	}
	s.materialized[SystemH] = true
}

// hToRef derives [X/ref] = [X/H] - [ref/H] for every tracked element except
// the reference itself, whose entry stays anchored at its h value.
func (s *Store) hToRef(ref string) {
	sys := RefSystem(ref)
	refH := s.values[ref][SystemH]
	for _, sym := range s.elements {
		if sym == ref {
			continue
		}
		s.values[sym][sys] = subValues(s.values[sym][SystemH], refH)
	}
	s.materialized[sys] = true
}

func (s *Store) logepsToH(comp solar.Composition) {
	for _, sym := range s.elements {
		s.values[sym][SystemH] = addScalar(s.values[sym][SystemLogEps], -comp[sym])
	}
	s.materialized[SystemH] = true
}

func (s *Store) hToLogeps(comp solar.Composition) {
	for _, sym := range s.elements {
		s.values[sym][SystemLogEps] = addScalar(s.values[sym][SystemH], comp[sym])
	}
	s.materialized[SystemLogEps] = true
}

// autoMaterializeFe keeps the conventional [X/Fe] frame available whenever
// iron is tracked and the h frame exists.
func (s *Store) autoMaterializeFe() {
	if _, ok := s.values["Fe"]; !ok {
		return
	}
	if s.materialized[RefSystem("Fe")] || !s.materialized[SystemH] {
		return
	}
	s.hToRef("Fe")
}

func addValues(a, b Value) Value {
	out := make(Value, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subValues(a, b Value) Value {
	out := make(Value, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func addScalar(a Value, c float64) Value {
	out := make(Value, len(a))
	for i := range a {
		out[i] = a[i] + c
	}
	return out
}
