package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	sm := NewSnapshotManager(filepath.Join(t.TempDir(), "dumps"))

	state := map[string]any{"bids": []string{"1BTCUSD-100-1"}, "quote": "150"}
	snap, err := CreateSnapshot(100, "teardown", state)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := sm.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if loaded.Seq != 100 || loaded.Reason != "teardown" {
		t.Errorf("loaded = %+v", loaded)
	}

	var got map[string]any
	if err := json.Unmarshal(loaded.State, &got); err != nil {
		t.Fatal(err)
	}
	if got["quote"] != "150" {
		t.Errorf("state mismatch: %v", got)
	}
}

func TestSnapshot_LoadLatest_Empty(t *testing.T) {
	sm := NewSnapshotManager(filepath.Join(t.TempDir(), "missing"))
	snap, err := sm.LoadLatest()
	if err != nil || snap != nil {
		t.Errorf("expected nil, nil; got %v, %v", snap, err)
	}
}

func TestSnapshot_Cleanup(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	for i := uint64(1); i <= 5; i++ {
		snap := &Snapshot{Seq: i, TsUnix: int64(1000 + i), State: json.RawMessage(`{}`)}
		if _, err := sm.Save(snap); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 { // two snapshots + notes.txt
		t.Errorf("expected 3 files, got %d", len(entries))
	}
	latest, _ := sm.LoadLatest()
	if latest == nil || latest.Seq != 5 {
		t.Errorf("latest = %+v", latest)
	}
}
