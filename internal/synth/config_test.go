package synth_test

import (
	"strings"
	"testing"

	"stellarsynth/internal/synth"
)

const sampleConfig = `
manager:
  in_path: /data/models
  out_path: /data/spectra
  turbo_path: /opt/turbospectrum
solar_reference: asplund2009
params:
  teff: 5777
  logg: 4.4
  feh: -0.5
  vmicro: 1.0
  alphafe: 0.2
wave:
  min: 5000
  max: 5100
model: p5777_g+4.4_z-0.50.int
linelists:
  - /data/lists/atoms.list
broadening:
  - profile: 2
    fwhm: 120
  - profile: 4
    velocity: 3.5
`

func TestParseConfig(t *testing.T) {
	cfg, err := synth.ParseConfig(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Manager.TurboPath != "/opt/turbospectrum" {
		t.Fatalf("turbo path = %q", cfg.Manager.TurboPath)
	}
	if cfg.Params.Teff != 5777 || cfg.Params.FeH != -0.5 {
		t.Fatalf("params = %+v", cfg.Params)
	}
	if cfg.Wave.Min != 5000 || cfg.Wave.Max != 5100 {
		t.Fatalf("wave = %+v", cfg.Wave)
	}
	if len(cfg.Broadening) != 2 || cfg.Broadening[1].Velocity != 3.5 {
		t.Fatalf("broadening = %+v", cfg.Broadening)
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	bad := strings.Replace(sampleConfig, "solar_reference:", "solar_refrence:", 1)
	if _, err := synth.ParseConfig(strings.NewReader(bad)); err == nil {
		t.Fatal("misspelled key accepted")
	}
}

func TestParseConfigValidates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"missing model", func(s string) string { return strings.Replace(s, "model: p5777_g+4.4_z-0.50.int\n", "", 1) }},
		{"no line lists", func(s string) string {
			return strings.Replace(s, "linelists:\n  - /data/lists/atoms.list\n", "linelists: []\n", 1)
		}},
		{"inverted wave", func(s string) string { return strings.Replace(s, "max: 5100", "max: 4000", 1) }},
		{"bad broadening profile", func(s string) string { return strings.Replace(s, "profile: 4", "profile: 7", 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := synth.ParseConfig(strings.NewReader(tc.mutate(sampleConfig))); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestBroadeningValidate(t *testing.T) {
	if err := (synth.Broadening{Profile: synth.ProfileGaussian, FWHM: 100}).Validate(); err != nil {
		t.Fatalf("valid fwhm broadening rejected: %v", err)
	}
	if err := (synth.Broadening{Profile: synth.ProfileRotational, Velocity: 2}).Validate(); err != nil {
		t.Fatalf("valid velocity broadening rejected: %v", err)
	}
	if err := (synth.Broadening{Profile: synth.ProfileGaussian}).Validate(); err == nil {
		t.Fatal("broadening without magnitude accepted")
	}
	if err := (synth.Broadening{Profile: synth.ProfileGaussian, FWHM: 100, Velocity: 2}).Validate(); err == nil {
		t.Fatal("broadening with both magnitudes accepted")
	}
}
