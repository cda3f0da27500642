package core

import (
	"path/filepath"
	"testing"

	"reservecore/internal/infra/persistence/memory"
	"reservecore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("RESERVECORE_STORAGE_DRIVER", string(StorageMemory))

	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	t.Setenv("RESERVECORE_STORAGE_DRIVER", "")
	t.Setenv("RESERVECORE_SQLITE_PATH", filepath.Join(t.TempDir(), "state.db"))

	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("RESERVECORE_STORAGE_DRIVER", "tape")

	if _, err := OpenPersistentStore(NewDefaultRulesEngine()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
