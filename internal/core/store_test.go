package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func validRun(name string) SynthesisRun {
	return SynthesisRun{
		Name:       name,
		Teff:       5777,
		LogG:       4.44,
		FeH:        0,
		VMicro:     1.0,
		LambdaMin:  5000,
		LambdaMax:  5100,
		LambdaStep: 0.01,
	}
}

func mustCreateRun(t *testing.T, store *MemoryStore, run SynthesisRun) SynthesisRun {
	t.Helper()
	var created SynthesisRun
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateRun(run)
		return err
	}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return created
}

func TestMemoryStoreRunLifecycle(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	created := mustCreateRun(t, store, validRun("sun"))

	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Status != RunStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected matching timestamps, got %v / %v", created.CreatedAt, created.UpdatedAt)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateRun(created.ID, func(r *SynthesisRun) error {
			r.Status = RunStatusRunning
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update run: %v", err)
	}

	got, ok := store.GetRun(created.ID)
	if !ok {
		t.Fatal("run not found after update")
	}
	if got.Status != RunStatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteRun(created.ID)
	}); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok := store.GetRun(created.ID); ok {
		t.Fatal("run still present after delete")
	}
}

func TestMemoryStoreRollbackOnError(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	sentinel := errors.New("boom")

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateRun(validRun("transient")); err != nil {
			return err
		}
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if runs := store.ListRuns(); len(runs) != 0 {
		t.Fatalf("expected empty store after rollback, got %d runs", len(runs))
	}
}

func TestMemoryStoreBlocksInvalidMicroturbulence(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())

	run := validRun("still")
	run.VMicro = 0
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRun(run)
		return err
	})

	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !violation.Result.HasBlocking() {
		t.Fatal("expected blocking violation")
	}
	if runs := store.ListRuns(); len(runs) != 0 {
		t.Fatal("blocked transaction must not commit")
	}
}

func TestMemoryStoreBlocksOversizedGrid(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())

	run := validRun("wide")
	run.LambdaMin = 3000
	run.LambdaMax = 20000
	run.LambdaStep = 0.001
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRun(run)
		return err
	})

	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	found := false
	for _, v := range violation.Result.Violations {
		if v.Rule == "wavelength_span" && v.Severity == SeverityBlock {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected wavelength_span block, got %+v", violation.Result.Violations)
	}
}

func TestMemoryStoreWarnsOnLineListCoverage(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())

	var listID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		list, err := tx.CreateLineList(LineList{Name: "blue", Path: "lists/blue.list", MinWave: 4000, MaxWave: 4500})
		if err != nil {
			return err
		}
		listID = list.ID
		return nil
	}); err != nil {
		t.Fatalf("create line list: %v", err)
	}

	run := validRun("red")
	run.LineListIDs = []string{listID}
	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRun(run)
		return err
	})
	if err != nil {
		t.Fatalf("warn severity must not block commit: %v", err)
	}
	warned := false
	for _, v := range res.Violations {
		if v.Rule == "run_reference" && v.Severity == SeverityWarn && strings.Contains(v.Message, "covers") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected coverage warning, got %+v", res.Violations)
	}
}

func TestMemoryStoreBlocksMissingReferences(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())

	missing := "nope"
	run := validRun("dangling")
	run.AtmosphereID = &missing
	run.LineListIDs = []string{"also-nope"}
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRun(run)
		return err
	})

	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(violation.Result.Violations) != 2 {
		t.Fatalf("expected two violations, got %+v", violation.Result.Violations)
	}
}

func TestMemoryStoreReferentialDeleteGuards(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	ctx := context.Background()

	var listID, atmID, runID, artifactID string
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		list, err := tx.CreateLineList(LineList{Name: "vald", Path: "lists/vald.list", MinWave: 4000, MaxWave: 7000})
		if err != nil {
			return err
		}
		listID = list.ID
		atm, err := tx.CreateAtmosphere(AtmosphereModel{Name: "sun", Path: "models/sun.mod", Teff: 5777, LogG: 4.44})
		if err != nil {
			return err
		}
		atmID = atm.ID
		run := validRun("sun")
		run.AtmosphereID = &atm.ID
		run.LineListIDs = []string{list.ID}
		created, err := tx.CreateRun(run)
		if err != nil {
			return err
		}
		runID = created.ID
		artifact, err := tx.CreateArtifact(SpectrumArtifact{RunID: created.ID, Kind: "spec", BlobKey: "spectra/sun.spec"})
		if err != nil {
			return err
		}
		artifactID = artifact.ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, tc := range []struct {
		name string
		fn   func(Transaction) error
	}{
		{"line list in use", func(tx Transaction) error { return tx.DeleteLineList(listID) }},
		{"atmosphere in use", func(tx Transaction) error { return tx.DeleteAtmosphere(atmID) }},
		{"run with artifacts", func(tx Transaction) error { return tx.DeleteRun(runID) }},
	} {
		if _, err := store.RunInTransaction(ctx, func(tx Transaction) error { return tc.fn(tx) }); err == nil {
			t.Fatalf("%s: expected delete to fail", tc.name)
		} else if !strings.Contains(err.Error(), "still referenced") {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteArtifact(artifactID)
	}); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteRun(runID)
	}); err != nil {
		t.Fatalf("delete run after artifact removal: %v", err)
	}
}

func TestMemoryStoreArtifactRequiresRunAndKey(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	run := mustCreateRun(t, store, validRun("sun"))

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateArtifact(SpectrumArtifact{RunID: "missing", BlobKey: "k"})
		return err
	}); err == nil {
		t.Fatal("expected missing run to fail")
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateArtifact(SpectrumArtifact{RunID: run.ID})
		return err
	}); err == nil {
		t.Fatal("expected missing blob key to fail")
	}
}

func TestMemoryStoreDecoratesArtifactIDs(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	run := mustCreateRun(t, store, validRun("sun"))

	var ids []string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		for _, key := range []string{"a.spec", "b.eqw"} {
			artifact, err := tx.CreateArtifact(SpectrumArtifact{RunID: run.ID, Kind: "spec", BlobKey: key})
			if err != nil {
				return err
			}
			ids = append(ids, artifact.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("create artifacts: %v", err)
	}

	got, _ := store.GetRun(run.ID)
	if len(got.ArtifactIDs) != 2 {
		t.Fatalf("expected both artifact ids, got %v", got.ArtifactIDs)
	}
}

func TestSnapshotRoundTripAndMigration(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	run := mustCreateRun(t, store, validRun("sun"))

	snapshot := store.ExportState()
	snapshot.Artifacts = map[string]SpectrumArtifact{
		"orphan": {Base: Base{ID: "orphan"}, RunID: "gone", BlobKey: "x"},
	}
	dangling := "missing-atm"
	mutated := snapshot.Runs[run.ID]
	mutated.AtmosphereID = &dangling
	mutated.LineListIDs = []string{"missing-list", "missing-list"}
	snapshot.Runs[run.ID] = mutated
	snapshot.LineLists = nil

	restored := NewMemoryStore(NewDefaultRulesEngine())
	restored.ImportState(snapshot)

	got, ok := restored.GetRun(run.ID)
	if !ok {
		t.Fatal("run lost during import")
	}
	if got.AtmosphereID != nil {
		t.Fatal("dangling atmosphere reference should be cleared")
	}
	if len(got.LineListIDs) != 0 {
		t.Fatalf("dangling line list references should be dropped, got %v", got.LineListIDs)
	}
	if artifacts := restored.ListArtifacts(); len(artifacts) != 0 {
		t.Fatalf("orphan artifacts should be dropped, got %v", artifacts)
	}
}

func TestMemoryStoreViewIsIsolated(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	run := mustCreateRun(t, store, validRun("sun"))

	if err := store.View(context.Background(), func(view TransactionView) error {
		got, ok := view.FindRun(run.ID)
		if !ok {
			t.Fatal("run not visible in view")
		}
		got.Name = "mutated"
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	got, _ := store.GetRun(run.ID)
	if got.Name != "sun" {
		t.Fatalf("view mutation leaked into store: %s", got.Name)
	}
}

func TestMemoryStoreTimestampsUseNowFunc(t *testing.T) {
	store := NewMemoryStore(NewDefaultRulesEngine())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.nowFn = func() time.Time { return fixed }

	created := mustCreateRun(t, store, validRun("sun"))
	if !created.CreatedAt.Equal(fixed) {
		t.Fatalf("expected %v, got %v", fixed, created.CreatedAt)
	}
}
