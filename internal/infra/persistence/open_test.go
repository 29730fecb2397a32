package persistence

import (
	"path/filepath"
	"testing"

	"stellarsynth/internal/core"
	"stellarsynth/internal/infra/persistence/sqlite"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Setenv("STELLARSYNTH_STORAGE_DRIVER", "")
	t.Setenv("STELLARSYNTH_SQLITE_PATH", filepath.Join(t.TempDir(), "state.db"))

	store, err := Open(core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	_ = s.Close()
}

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("STELLARSYNTH_STORAGE_DRIVER", "memory")

	store, err := Open(core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*core.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STELLARSYNTH_STORAGE_DRIVER", "etcd")

	if _, err := Open(core.NewDefaultRulesEngine()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}
