package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestViewLifecycle(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetView("s1", "predict"); !errors.Is(err, ErrNoView) {
		t.Fatalf("expected ErrNoView got %v", err)
	}

	score := 82.5
	if err := db.SaveView(&View{SessionID: "s1", Tab: "predict", Format: "pdb", Content: "first", PLDDT: &score}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveView(&View{SessionID: "s1", Tab: "predict", Format: "pdb", Content: "second"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := db.SaveView(&View{SessionID: "s2", Tab: "predict", Format: "pdb", Content: "other"}); err != nil {
		t.Fatalf("save other session: %v", err)
	}

	view, err := db.GetView("s1", "predict")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Content != "second" {
		t.Fatalf("expected replaced content got %q", view.Content)
	}
	if view.HasPLDDT() {
		t.Fatalf("expected plddt cleared on replace, got %v", *view.PLDDT)
	}

	views, err := db.ListViews("s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view got %d", len(views))
	}

	if err := db.ClearView("s1", "predict"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := db.GetView("s1", "predict"); !errors.Is(err, ErrNoView) {
		t.Fatalf("expected ErrNoView after clear got %v", err)
	}
	if _, err := db.GetView("s2", "predict"); err != nil {
		t.Fatalf("other session should be untouched: %v", err)
	}
}

func TestSaveViewRequiresKeys(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveView(&View{Tab: "upload"}); err == nil {
		t.Fatal("expected error for missing session")
	}
	if err := db.SaveView(nil); err == nil {
		t.Fatal("expected error for nil view")
	}
}

func TestPurgeViewsBefore(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveView(&View{SessionID: "s1", Tab: "afdb", Content: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := db.PurgeViewsBefore(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed got %d", removed)
	}
}

func TestPredictionCache(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := db.GetPrediction("MKV"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := db.SavePrediction(" MKV ", "ATOM"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SavePrediction("MKV", "ATOM2"); err != nil {
		t.Fatalf("resave: %v", err)
	}
	content, ok, err := db.GetPrediction("MKV")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if content != "ATOM2" {
		t.Fatalf("expected updated content got %q", content)
	}
	count, err := db.CountPredictions()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 prediction got %d", count)
	}
}
