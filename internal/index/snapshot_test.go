package index

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.idx"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadSnapshot on missing file = %v; want ErrNotFound", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := testSnapshot(5, func(i int) []float32 {
		return []float32{float32(i), 1, 2, 3}
	})
	snap.Metadata[2] = json.RawMessage(`{"Model":"X100V"}`)

	path := filepath.Join(t.TempDir(), "nested", "dir", "album.idx")
	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(loaded.Filepaths, snap.Filepaths) {
		t.Errorf("filepaths changed: got %v want %v", loaded.Filepaths, snap.Filepaths)
	}
	if !reflect.DeepEqual(loaded.Embeddings, snap.Embeddings) {
		t.Errorf("embeddings changed across round trip")
	}
	if !reflect.DeepEqual(loaded.ModTimes, snap.ModTimes) {
		t.Errorf("modtimes changed across round trip")
	}
	if !reflect.DeepEqual(loaded.Metadata, snap.Metadata) {
		t.Errorf("metadata changed across round trip")
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := testSnapshot(3, func(i int) []float32 { return []float32{1} })
	if err := snap.Validate(); err != nil {
		t.Fatalf("aligned snapshot should validate: %v", err)
	}

	snap.ModTimes = snap.ModTimes[:2]
	if err := snap.Validate(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("misaligned snapshot = %v; want ErrCorrupt", err)
	}

	path := filepath.Join(t.TempDir(), "bad.idx")
	if err := SaveSnapshot(path, snap); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("SaveSnapshot of misaligned snapshot = %v; want ErrCorrupt", err)
	}
}

func TestSnapshotRemove(t *testing.T) {
	snap := testSnapshot(4, func(i int) []float32 { return []float32{float32(i)} })
	target := snap.Filepaths[1]

	if err := snap.Remove(target); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if snap.Len() != 3 {
		t.Fatalf("Len after remove = %d; want 3", snap.Len())
	}
	for _, fp := range snap.Filepaths {
		if fp == target {
			t.Fatalf("removed path %q still present", target)
		}
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("alignment broken after remove: %v", err)
	}
	// The record that followed the removed one keeps its embedding.
	if snap.Embeddings[1][0] != 2 {
		t.Errorf("embedding alignment shifted: got %v want 2", snap.Embeddings[1][0])
	}

	if err := snap.Remove("/photos/unknown.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove of unknown path = %v; want ErrNotFound", err)
	}
}

func TestSnapshotFilterOut(t *testing.T) {
	snap := testSnapshot(5, func(i int) []float32 { return []float32{float32(i)} })
	drop := map[string]bool{
		snap.Filepaths[0]: true,
		snap.Filepaths[3]: true,
	}

	removed := snap.FilterOut(drop)
	if removed != 2 {
		t.Fatalf("FilterOut removed %d; want 2", removed)
	}
	if snap.Len() != 3 {
		t.Fatalf("Len after filter = %d; want 3", snap.Len())
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("alignment broken after filter: %v", err)
	}
	want := []float32{1, 2, 4}
	for i, w := range want {
		if snap.Embeddings[i][0] != w {
			t.Errorf("embedding[%d] = %v; want %v", i, snap.Embeddings[i][0], w)
		}
	}

	if removed := snap.FilterOut(nil); removed != 0 {
		t.Errorf("FilterOut(nil) removed %d; want 0", removed)
	}
}
