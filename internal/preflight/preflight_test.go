package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"suture/internal/testsupport"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestCheckCommandMissing(t *testing.T) {
	result := CheckCommand("test", "definitely-not-a-binary-xyz")
	if result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestRunAllWithPreparedDirs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected checks to run")
	}
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
}
