package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitDBFailsWhenParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	_, err := InitDB(filepath.Join(blocker, "sub", "cache.db"))
	if err == nil {
		t.Fatal("expected error when the db directory cannot be created")
	}
}

func TestCloseDBNilIsNoOp(t *testing.T) {
	if err := CloseDB(nil); err != nil {
		t.Fatalf("expected closing a nil handle to be a no-op, got %v", err)
	}
}
