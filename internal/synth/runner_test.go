package synth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stellarsynth/internal/synth"
	"stellarsynth/pkg/solar"
)

type capturedRun struct {
	exe   string
	dir   string
	stdin string
}

// stubRuns replaces the external command runner and records every
// invocation.
func stubRuns(t *testing.T, fail error) *[]capturedRun {
	t.Helper()
	var runs []capturedRun
	restore := synth.OverrideRunCommand(func(_ context.Context, exe, dir, stdin string, _ bool) error {
		runs = append(runs, capturedRun{exe: exe, dir: dir, stdin: stdin})
		return fail
	})
	t.Cleanup(restore)
	return &runs
}

func newTestManager(t *testing.T) (*synth.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	turbo := filepath.Join(dir, "turbospectrum")
	if err := os.MkdirAll(filepath.Join(turbo, "DATA"), 0o755); err != nil {
		t.Fatalf("mkdir DATA: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sun.mod"), []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	m := synth.NewManager(synth.ManagerConfig{
		InPath:    dir,
		TurboPath: turbo,
	})
	return m, dir
}

func configureManager(t *testing.T, m *synth.Manager) {
	t.Helper()
	if err := m.SetWave(synth.WaveRange{Min: 5000, Max: 5050}, 0.01); err != nil {
		t.Fatalf("set wave: %v", err)
	}
	comp, err := solar.Lookup(solar.Asplund2009)
	if err != nil {
		t.Fatalf("solar lookup: %v", err)
	}
	if err := m.SetAbundances(comp, synth.AssembleOptions{Metals: -0.5}); err != nil {
		t.Fatalf("set abundances: %v", err)
	}
}

func TestRunBabsmaRequiresConfiguration(t *testing.T) {
	m, _ := newTestManager(t)
	stubRuns(t, nil)

	_, err := m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "sun.mod"})
	var notConfigured synth.NotConfiguredError
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError before wave set, got %v", err)
	}

	if err := m.SetWave(synth.WaveRange{Min: 5000, Max: 5050}, 0); err != nil {
		t.Fatalf("set wave: %v", err)
	}
	_, err = m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "sun.mod"})
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError before abundances set, got %v", err)
	}
}

func TestRunBabsmaExecutesOpacityStage(t *testing.T) {
	m, dir := newTestManager(t)
	runs := stubRuns(t, nil)
	configureManager(t, m)

	opac, err := m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "sun.mod", VMicro: 1.2})
	if err != nil {
		t.Fatalf("run babsma: %v", err)
	}
	if want := filepath.Join(dir, "sun.mod_opac"); opac != want {
		t.Fatalf("opac path = %q, want %q", opac, want)
	}
	if len(*runs) != 1 {
		t.Fatalf("expected one command run, got %d", len(*runs))
	}
	run := (*runs)[0]
	if filepath.Base(run.exe) != "babsma_lu" {
		t.Fatalf("executable = %q", run.exe)
	}
	if run.dir != dir {
		t.Fatalf("working dir = %q, want %q", run.dir, dir)
	}
	if !strings.Contains(run.stdin, "'XIFIX:' 'T'\n1.200\n") {
		t.Fatalf("deck missing vmicro block:\n%s", run.stdin)
	}
	// The DATA link is removed once the stage completes.
	if _, err := os.Lstat(filepath.Join(dir, "DATA")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("DATA link left behind: %v", err)
	}
}

func TestRunBabsmaMissingModel(t *testing.T) {
	m, _ := newTestManager(t)
	stubRuns(t, nil)
	configureManager(t, m)

	if _, err := m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "absent.mod"}); err == nil {
		t.Fatal("missing model atmosphere accepted")
	}
}

func TestRunBsynUsesOpacityFromBabsma(t *testing.T) {
	m, dir := newTestManager(t)
	runs := stubRuns(t, nil)
	configureManager(t, m)

	if _, err := m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "sun.mod"}); err != nil {
		t.Fatalf("run babsma: %v", err)
	}
	spec, err := m.RunBsyn(context.Background(), synth.SynthOptions{
		LineLists: []string{"atoms.list"},
		Spherical: true,
	})
	if err != nil {
		t.Fatalf("run bsyn: %v", err)
	}
	if spec != "sun.mod_4999.99_5050.01.spec" {
		t.Fatalf("result name = %q", spec)
	}
	if len(*runs) != 2 {
		t.Fatalf("expected two command runs, got %d", len(*runs))
	}
	run := (*runs)[1]
	if filepath.Base(run.exe) != "bsyn_lu" {
		t.Fatalf("executable = %q", run.exe)
	}
	opacLine := "'MODELOPAC:' '" + filepath.Join(dir, "sun.mod_opac") + "'"
	if !strings.Contains(run.stdin, opacLine+"\n") {
		t.Fatalf("deck missing opacity file:\n%s", run.stdin)
	}
	if !strings.Contains(run.stdin, "'SPHERICAL:'  'T'\n") {
		t.Fatalf("deck missing spherical flag:\n%s", run.stdin)
	}
}

func TestRunBsynWithoutOpacity(t *testing.T) {
	m, _ := newTestManager(t)
	stubRuns(t, nil)
	configureManager(t, m)

	_, err := m.RunBsyn(context.Background(), synth.SynthOptions{LineLists: []string{"a.list"}})
	var notConfigured synth.NotConfiguredError
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError without opacity file, got %v", err)
	}
}

func TestRunEqwidtRequiresLineLists(t *testing.T) {
	m, _ := newTestManager(t)
	stubRuns(t, nil)
	configureManager(t, m)

	_, err := m.RunEqwidt(context.Background(), synth.SynthOptions{OpacPath: "opac"})
	var notConfigured synth.NotConfiguredError
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError without line lists, got %v", err)
	}
}

func TestRunStageCleansUpLinkOnFailure(t *testing.T) {
	m, dir := newTestManager(t)
	stubRuns(t, errors.New("boom"))
	configureManager(t, m)

	if _, err := m.RunBabsma(context.Background(), synth.BabsmaOptions{Model: "sun.mod"}); err == nil {
		t.Fatal("stage failure not propagated")
	}
	if _, err := os.Lstat(filepath.Join(dir, "DATA")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("DATA link left behind after failure: %v", err)
	}
}
