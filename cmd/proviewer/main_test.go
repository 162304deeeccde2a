package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"proviewer/backend/internal/structure"
)

func TestLoadRequiresExactlyOneSource(t *testing.T) {
	if _, _, err := load(context.Background(), "", "", "", "", "", ""); err == nil {
		t.Fatal("expected error with no source")
	}
	if _, _, err := load(context.Background(), "MKV", "", "", "Q8W3K0", "", ""); err == nil {
		t.Fatal("expected error with two sources")
	}
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.pdb")
	content := "ATOM      1  CA  GLY A   1       0.000   0.000   0.000  1.00 70.00           C\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, format, err := load(context.Background(), "", path, "", "", "", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if format != structure.FormatPDB || got != content {
		t.Fatalf("unexpected load result %q %q", format, got)
	}
}

func TestLoadFormatOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ent")
	if err := os.WriteFile(path, []byte("HEADER\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := load(context.Background(), "", path, "", "", "", ""); err == nil {
		t.Fatal("expected unsupported extension without override")
	}
	_, format, err := load(context.Background(), "", path, "pdb", "", "", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if format != structure.FormatPDB {
		t.Fatalf("expected pdb got %q", format)
	}
}
