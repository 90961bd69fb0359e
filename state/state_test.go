package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileTracker_Reload(t *testing.T) {
	dir := t.TempDir()
	date := "2023-03-07 10:15:00"

	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if err := tracker.Record("h1", Entry{Name: "a.eml", Date: &date}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record("h2", Entry{Name: "b.msg"}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record("h1", Entry{Name: "copy.eml"}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record("", Entry{Name: "ignored"}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("NewFileTracker() reload error = %v", err)
	}

	e, ok := reloaded.Lookup("h1")
	if !ok || e.Name != "a.eml" || e.Date == nil || *e.Date != date {
		t.Errorf("Lookup(h1) = %+v, %v", e, ok)
	}
	e, ok = reloaded.Lookup("h2")
	if !ok || e.Date != nil {
		t.Errorf("Lookup(h2) = %+v, %v", e, ok)
	}
	if _, ok := reloaded.Lookup(""); ok {
		t.Error("empty hash should never be found")
	}

	snap := reloaded.Snapshot()
	if snap.Processed != 2 || snap.Dated != 1 {
		t.Errorf("Snapshot() = %+v, want {2 1}", snap)
	}
}

func TestFileTracker_NoPersist(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record("h1", Entry{Name: "a.eml"}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Lookup("h1"); ok {
		t.Error("dry run tracker should not persist")
	}
}

func TestNewFileTracker_EmptyDir(t *testing.T) {
	if _, err := NewFileTracker(" ", true); err == nil {
		t.Error("expected error for empty state directory")
	}
}

func TestFileTracker_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	content := `{"hash":"h1","name":"a.eml","date":"2023-03-07 10:15:00"}
not json
{"hash":"","name":"nohash.eml"}

{"hash":"h1","name":"later.eml","date":null}
{"hash":"h2","name":"b.m`
	if err := os.WriteFile(filepath.Join(dir, "extracted.jsonl"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if got := tracker.Corrupt(); got != 3 {
		t.Errorf("Corrupt() = %d, want 3", got)
	}
	if e, ok := tracker.Lookup("h1"); !ok || e.Name != "a.eml" {
		t.Errorf("Lookup(h1) = %+v, %v; want first record kept", e, ok)
	}
	if err := tracker.Record("h3", Entry{Name: "c.eml"}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	reloaded, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Lookup("h3"); !ok {
		t.Error("record appended after a truncated line was lost")
	}
}
