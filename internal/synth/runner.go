package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"stellarsynth/pkg/solar"
)

// Default executable layout inside a Turbospectrum installation.
const (
	defaultExecDir   = "exec-v19.1"
	defaultStep      = 0.01
	dataLinkName     = "DATA"
	babsmaExecutable = "babsma_lu"
	bsynExecutable   = "bsyn_lu"
	eqwidtExecutable = "eqwidt_lu"
)

var (
	runCommand = execRun
	runMu      sync.Mutex
)

// execRun feeds the rendered deck to the executable on stdin. The binaries
// resolve their DATA directory relative to the working directory, so dir
// must contain the DATA symlink when they run.
func execRun(ctx context.Context, exe, dir, stdin string, verbose bool) error {
	cmd := exec.CommandContext(ctx, exe)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)
	if verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", filepath.Base(exe), err)
	}
	return nil
}

// OverrideRunCommand swaps the command runner for tests and returns a
// restore function.
func OverrideRunCommand(fn func(ctx context.Context, exe, dir, stdin string, verbose bool) error) func() {
	runMu.Lock()
	defer runMu.Unlock()
	prev := runCommand
	runCommand = fn
	return func() {
		runMu.Lock()
		defer runMu.Unlock()
		runCommand = prev
	}
}

// NotConfiguredError reports a synthesis stage invoked before its
// prerequisite state (wavelength grid, abundances, opacity file) was set.
type NotConfiguredError struct {
	Missing string
}

func (e NotConfiguredError) Error() string {
	return fmt.Sprintf("synthesis not configured: %s not set", e.Missing)
}

// ManagerConfig locates the external binaries and data directories.
type ManagerConfig struct {
	// InPath holds the model atmospheres and receives intermediate files.
	InPath string `yaml:"in_path"`
	// OutPath receives synthesized spectra; defaults to InPath.
	OutPath string `yaml:"out_path"`
	// TurboPath is the root of the Turbospectrum installation.
	TurboPath string `yaml:"turbo_path"`
	// ExecDir is the executable directory under TurboPath.
	ExecDir string `yaml:"exec_dir"`
	// Verbose forwards the binaries' output to stdout/stderr.
	Verbose bool `yaml:"verbose"`
}

// Manager formats inputs for and runs the opacity and synthesis stages. The
// wavelength grid and abundance mix must be set before the opacity stage;
// the opacity stage must run (or an opacity file be supplied) before
// synthesis. Not safe for concurrent use.
type Manager struct {
	cfg ManagerConfig

	waveSet    bool
	lambdaMin  float64
	lambdaMax  float64
	lambdaStep float64

	abundSet   bool
	metals     float64
	alphas     float64
	helium     float64
	rProcess   float64
	sProcess   float64
	abundances AbundanceSet

	model    string
	opacPath string
}

// NewManager constructs a stage manager, applying defaults for unset paths.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.InPath == "" {
		cfg.InPath = "."
	}
	if cfg.OutPath == "" {
		cfg.OutPath = cfg.InPath
	}
	if cfg.TurboPath == "" {
		cfg.TurboPath = "."
	}
	if cfg.ExecDir == "" {
		cfg.ExecDir = defaultExecDir
	}
	return &Manager{cfg: cfg}
}

// SetWave fixes the wavelength grid. The range is widened by one step on
// each side so the requested end points are synthesized. A zero step uses
// the default of 0.01 angstroms.
func (m *Manager) SetWave(r WaveRange, step float64) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if step == 0 {
		step = defaultStep
	}
	if step < 0 {
		return fmt.Errorf("wavelength step must be positive, got %g", step)
	}
	m.lambdaMin, m.lambdaMax = r.Grid(step)
	m.lambdaStep = step
	m.waveSet = true
	return nil
}

// SetAbundances assembles and stores the element mix from a solar
// composition plus scaling and overrides.
func (m *Manager) SetAbundances(comp solar.Composition, opts AssembleOptions) error {
	abund, err := AssembleAbundances(comp, opts)
	if err != nil {
		return err
	}
	m.metals = opts.Metals
	m.alphas = opts.Alphas
	m.abundances = abund
	m.abundSet = true
	return nil
}

// Abundances exposes the assembled element mix; nil until SetAbundances.
func (m *Manager) Abundances() AbundanceSet {
	if !m.abundSet {
		return nil
	}
	return m.abundances
}

// AbundancesSet reports whether the element mix has been assembled.
func (m *Manager) AbundancesSet() bool { return m.abundSet }

// OutPath returns the directory that receives synthesized spectra.
func (m *Manager) OutPath() string { return m.cfg.OutPath }

// BabsmaOptions configures the opacity stage.
type BabsmaOptions struct {
	// Model names the atmosphere file within InPath.
	Model string
	// VMicro is the microturbulent velocity in km/s.
	VMicro float64
	// MarcsFile marks the model as a native MARCS file; interpolated models
	// keep this false.
	MarcsFile bool
}

// RunBabsma runs the opacity stage and returns the opacity file path used as
// input to the synthesis stages.
func (m *Manager) RunBabsma(ctx context.Context, opts BabsmaOptions) (string, error) {
	if !m.waveSet {
		return "", NotConfiguredError{Missing: "wavelength range"}
	}
	if !m.abundSet {
		return "", NotConfiguredError{Missing: "abundances"}
	}
	modelPath := filepath.Join(m.cfg.InPath, opts.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return "", fmt.Errorf("model atmosphere %q: %w", modelPath, err)
	}

	m.model = opts.Model
	m.opacPath = modelPath + "_opac"

	deck := Deck{
		Stage:      StageBabsma,
		LambdaMin:  m.lambdaMin,
		LambdaMax:  m.lambdaMax,
		LambdaStep: m.lambdaStep,
		ModelPath:  modelPath,
		MarcsFile:  opts.MarcsFile,
		VMicro:     opts.VMicro,
		OpacPath:   m.opacPath,
		Metals:     m.metals,
		Alphas:     m.alphas,
		Helium:     m.helium,
		RProcess:   m.rProcess,
		SProcess:   m.sProcess,
		Abundances: m.abundances,
	}
	if err := m.runStage(ctx, babsmaExecutable, deck); err != nil {
		return "", err
	}
	return m.opacPath, nil
}

// SynthOptions configures the flux synthesis and equivalent-width stages.
type SynthOptions struct {
	// OpacPath overrides the opacity file produced by RunBabsma.
	OpacPath string
	// Spherical selects spherical radiative transfer.
	Spherical bool
	// LineLists are the paths fed to the line opacity reader.
	LineLists []string
	// Isotopes carries the isotope fractions for the molecular lines.
	Isotopes IsotopeMix
	// ResultName overrides the default output file name.
	ResultName string
}

// RunBsyn runs the flux synthesis stage and returns the result file name
// within OutPath.
func (m *Manager) RunBsyn(ctx context.Context, opts SynthOptions) (string, error) {
	return m.runSynthStage(ctx, StageBsyn, bsynExecutable, ".spec", opts)
}

// RunEqwidt runs the equivalent-width abundance stage.
func (m *Manager) RunEqwidt(ctx context.Context, opts SynthOptions) (string, error) {
	return m.runSynthStage(ctx, StageEqwidt, eqwidtExecutable, ".eqw", opts)
}

func (m *Manager) runSynthStage(ctx context.Context, stage Stage, exe, ext string, opts SynthOptions) (string, error) {
	opac := opts.OpacPath
	if opac == "" {
		if m.opacPath == "" {
			return "", NotConfiguredError{Missing: "opacity file"}
		}
		opac = m.opacPath
	}
	if len(opts.LineLists) == 0 {
		return "", NotConfiguredError{Missing: "line lists"}
	}

	result := opts.ResultName
	if result == "" {
		result = fmt.Sprintf("%s_%g_%g%s", m.model, m.lambdaMin, m.lambdaMax, ext)
	}

	deck := Deck{
		Stage:      stage,
		LambdaMin:  m.lambdaMin,
		LambdaMax:  m.lambdaMax,
		LambdaStep: m.lambdaStep,
		OpacPath:   opac,
		ResultPath: filepath.Join(m.cfg.OutPath, result),
		Spherical:  opts.Spherical,
		LineLists:  opts.LineLists,
		Isotopes:   opts.Isotopes,
		Metals:     m.metals,
		Alphas:     m.alphas,
		Helium:     m.helium,
		RProcess:   m.rProcess,
		SProcess:   m.sProcess,
		Abundances: m.abundances,
	}
	if err := m.runStage(ctx, exe, deck); err != nil {
		return "", err
	}
	return result, nil
}

// runStage links the Turbospectrum DATA directory into the working
// directory, runs the stage executable with the rendered deck on stdin, and
// removes the link again.
func (m *Manager) runStage(ctx context.Context, exe string, deck Deck) (retErr error) {
	link := filepath.Join(m.cfg.InPath, dataLinkName)
	target, err := filepath.Abs(filepath.Join(m.cfg.TurboPath, dataLinkName))
	if err != nil {
		return fmt.Errorf("resolve DATA directory: %w", err)
	}
	if err := os.Symlink(target, link); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("link DATA directory: %w", err)
	}
	// Concurrent runs sharing InPath also share the link, so a missing
	// link at cleanup is not an error.
	defer func() {
		if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) && retErr == nil {
			retErr = fmt.Errorf("unlink DATA directory: %w", err)
		}
	}()

	exePath := filepath.Join(m.cfg.TurboPath, m.cfg.ExecDir, exe)
	return runCommand(ctx, exePath, m.cfg.InPath, deck.Render(), m.cfg.Verbose)
}
