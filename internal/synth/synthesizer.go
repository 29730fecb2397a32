package synth

import (
	"context"
	"fmt"

	"stellarsynth/pkg/abundance"
	"stellarsynth/pkg/solar"
)

// Synthesizer runs a full synthesis from a RunConfig: abundance assembly,
// the opacity stage, flux synthesis, and the convolution chain. Not safe for
// concurrent use; Batch runs one Synthesizer per parameter set.
type Synthesizer struct {
	cfg     *RunConfig
	manager *Manager
	comp    solar.Composition
}

// NewSynthesizer validates the config and resolves its solar reference.
func NewSynthesizer(cfg *RunConfig) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ref := cfg.SolarReference
	if ref == "" {
		ref = solar.Asplund2009
	}
	comp, err := solar.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		cfg:     cfg,
		manager: NewManager(cfg.Manager),
		comp:    comp,
	}, nil
}

// Manager exposes the underlying stage manager.
func (s *Synthesizer) Manager() *Manager { return s.manager }

// prepare sets the wavelength grid and assembles the element mix. The
// config's [C/Fe] rides on top of the metallicity as a carbon override
// unless the config overrides carbon explicitly.
func (s *Synthesizer) prepare() error {
	if err := s.manager.SetWave(s.cfg.Wave, s.cfg.Step); err != nil {
		return err
	}
	overrides := make(map[string]float64, len(s.cfg.Abundances)+1)
	if s.cfg.Params.CFe != 0 {
		c, ok := s.comp.Value("C")
		if !ok {
			return fmt.Errorf("solar composition has no carbon entry")
		}
		overrides["C"] = c + s.cfg.Params.FeH + s.cfg.Params.CFe
	}
	for sym, v := range s.cfg.Abundances {
		overrides[solar.CanonicalSymbol(sym)] = v
	}
	return s.manager.SetAbundances(s.comp, AssembleOptions{
		Metals:    s.cfg.Params.FeH,
		Alphas:    s.cfg.Params.AlphaFe,
		Overrides: overrides,
	})
}

// ApplyStore folds a store's logeps frame into the run's abundance
// overrides; starIndex selects the column of vectorized stores.
func (s *Synthesizer) ApplyStore(store *abundance.Store, starIndex int) error {
	overrides, err := OverridesFromStore(store, starIndex)
	if err != nil {
		return err
	}
	if s.cfg.Abundances == nil {
		s.cfg.Abundances = make(map[string]float64, len(overrides))
	}
	for sym, v := range overrides {
		s.cfg.Abundances[sym] = v
	}
	return nil
}

// Synth runs the opacity and flux stages and the broadening chain, returning
// the final spectrum file name within OutPath.
func (s *Synthesizer) Synth(ctx context.Context) (string, error) {
	if err := s.prepare(); err != nil {
		return "", err
	}
	if _, err := s.manager.RunBabsma(ctx, BabsmaOptions{
		Model:     s.cfg.Model,
		VMicro:    s.cfg.Params.VMicro,
		MarcsFile: s.cfg.MarcsFile,
	}); err != nil {
		return "", err
	}
	spec, err := s.manager.RunBsyn(ctx, SynthOptions{
		Spherical: s.cfg.Params.Spherical(),
		LineLists: s.cfg.LineLists,
		Isotopes:  s.cfg.Params.DefaultIsotopes(),
	})
	if err != nil {
		return "", err
	}
	if len(s.cfg.Broadening) == 0 {
		return spec, nil
	}
	conv := &Convolver{
		OutPath: s.manager.cfg.OutPath,
		Verbose: s.manager.cfg.Verbose,
	}
	return conv.ConvolveChain(ctx, spec, s.cfg.Broadening)
}

// EqWidth runs the opacity and equivalent-width stages and returns the
// result file name within OutPath.
func (s *Synthesizer) EqWidth(ctx context.Context) (string, error) {
	if err := s.prepare(); err != nil {
		return "", err
	}
	if _, err := s.manager.RunBabsma(ctx, BabsmaOptions{
		Model:     s.cfg.Model,
		VMicro:    s.cfg.Params.VMicro,
		MarcsFile: s.cfg.MarcsFile,
	}); err != nil {
		return "", err
	}
	return s.manager.RunEqwidt(ctx, SynthOptions{
		Spherical: s.cfg.Params.Spherical(),
		LineLists: s.cfg.LineLists,
		Isotopes:  s.cfg.Params.DefaultIsotopes(),
	})
}

// Decks renders the stdin blocks the run would feed to each stage without
// executing anything, for inspection and dry runs.
func (s *Synthesizer) Decks() (babsma, bsyn string, err error) {
	if err := s.prepare(); err != nil {
		return "", "", err
	}
	m := s.manager
	opac := fmt.Sprintf("%s/%s_opac", m.cfg.InPath, s.cfg.Model)
	base := Deck{
		LambdaMin:  m.lambdaMin,
		LambdaMax:  m.lambdaMax,
		LambdaStep: m.lambdaStep,
		OpacPath:   opac,
		Metals:     m.metals,
		Alphas:     m.alphas,
		Abundances: m.abundances,
	}
	bd := base
	bd.Stage = StageBabsma
	bd.ModelPath = fmt.Sprintf("%s/%s", m.cfg.InPath, s.cfg.Model)
	bd.MarcsFile = s.cfg.MarcsFile
	bd.VMicro = s.cfg.Params.VMicro

	sd := base
	sd.Stage = StageBsyn
	sd.ResultPath = fmt.Sprintf("%s/%s_%g_%g.spec", m.cfg.OutPath, s.cfg.Model, m.lambdaMin, m.lambdaMax)
	sd.Spherical = s.cfg.Params.Spherical()
	sd.LineLists = s.cfg.LineLists
	sd.Isotopes = s.cfg.Params.DefaultIsotopes()

	return bd.Render(), sd.Render(), nil
}
