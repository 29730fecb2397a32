package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"stellarsynth/internal/core"
)

func validRun(name string) core.SynthesisRun {
	return core.SynthesisRun{
		Name:       name,
		Teff:       5777,
		LogG:       4.44,
		VMicro:     1.0,
		LambdaMin:  5000,
		LambdaMax:  5100,
		LambdaStep: 0.01,
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var runID string
	if _, err := store.RunInTransaction(context.Background(), func(tx core.Transaction) error {
		created, err := tx.CreateRun(validRun("sun"))
		if err != nil {
			return err
		}
		runID = created.ID
		_, err = tx.CreateArtifact(core.SpectrumArtifact{RunID: created.ID, Kind: "spec", BlobKey: "spectra/sun.spec"})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetRun(runID)
	if !ok {
		t.Fatal("run lost across reopen")
	}
	if got.Name != "sun" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.ArtifactIDs) != 1 {
		t.Fatalf("artifact link lost: %+v", got.ArtifactIDs)
	}
	if artifacts := reopened.ListArtifacts(); len(artifacts) != 1 || artifacts[0].BlobKey != "spectra/sun.spec" {
		t.Fatalf("unexpected artifacts: %+v", artifacts)
	}
}

func TestStoreDoesNotPersistBlockedTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	run := validRun("still")
	run.VMicro = 0
	if _, err := store.RunInTransaction(context.Background(), func(tx core.Transaction) error {
		_, err := tx.CreateRun(run)
		return err
	}); err == nil {
		t.Fatal("expected rule violation")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if runs := reopened.ListRuns(); len(runs) != 0 {
		t.Fatalf("blocked transaction leaked to disk: %+v", runs)
	}
}

func TestStoreDefaultsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store with nested dir: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
}
