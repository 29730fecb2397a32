package solar_test

import (
	"errors"
	"testing"

	"stellarsynth/pkg/solar"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"Asplund2009", "asplund2009", " ASPLUND2009 "} {
		comp, err := solar.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %q: %v", name, err)
		}
		if got := comp["Fe"]; got != 7.50 {
			t.Fatalf("Asplund2009 Fe = %v, want 7.50", got)
		}
		if got := comp["H"]; got != 12.00 {
			t.Fatalf("Asplund2009 H = %v, want 12.00", got)
		}
	}
}

func TestLookupUnknownReference(t *testing.T) {
	if _, err := solar.Lookup("Lodders2099"); !errors.Is(err, solar.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	comp, err := solar.Lookup(solar.Grevesse1998)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	comp["Fe"] = 0
	again, err := solar.Lookup(solar.Grevesse1998)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if again["Fe"] != 7.50 {
		t.Fatalf("built-in table mutated through returned copy: Fe = %v", again["Fe"])
	}
}

func TestReferencesDisagreeWhereExpected(t *testing.T) {
	a09, _ := solar.Lookup(solar.Asplund2009)
	g98, _ := solar.Lookup(solar.Grevesse1998)
	if a09["C"] == g98["C"] {
		t.Fatalf("expected Asplund2009 and Grevesse1998 to differ for C")
	}
	if a09["O"] == g98["O"] {
		t.Fatalf("expected Asplund2009 and Grevesse1998 to differ for O")
	}
}

func TestCanonicalSymbol(t *testing.T) {
	cases := map[string]string{
		"fe":   "Fe",
		"FE":   "Fe",
		"Fe":   "Fe",
		"c":    "C",
		" mg ": "Mg",
		"":     "",
	}
	for in, want := range cases {
		if got := solar.CanonicalSymbol(in); got != want {
			t.Fatalf("CanonicalSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAtomicNumberRoundTrip(t *testing.T) {
	cases := map[string]int{"H": 1, "C": 6, "fe": 26, "Ba": 56, "U": 92}
	for sym, want := range cases {
		z, err := solar.AtomicNumber(sym)
		if err != nil {
			t.Fatalf("AtomicNumber(%q): %v", sym, err)
		}
		if z != want {
			t.Fatalf("AtomicNumber(%q) = %d, want %d", sym, z, want)
		}
		back, err := solar.Symbol(z)
		if err != nil {
			t.Fatalf("Symbol(%d): %v", z, err)
		}
		if back != solar.CanonicalSymbol(sym) {
			t.Fatalf("Symbol(%d) = %q, want %q", z, back, solar.CanonicalSymbol(sym))
		}
	}
	if _, err := solar.AtomicNumber("Xx"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}
	if _, err := solar.Symbol(0); err == nil {
		t.Fatalf("expected error for atomic number 0")
	}
}

func TestAlphaElements(t *testing.T) {
	for _, sym := range []string{"O", "Ne", "mg", "Si", "S", "Ar", "Ca", "Ti"} {
		if !solar.IsAlpha(sym) {
			t.Fatalf("expected %q to be an alpha element", sym)
		}
	}
	for _, sym := range []string{"Fe", "C", "Na", "Ba"} {
		if solar.IsAlpha(sym) {
			t.Fatalf("did not expect %q to be an alpha element", sym)
		}
	}
}
