package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
)

// saveQuerySnapshot persists a snapshot and returns an engine over it.
func saveQuerySnapshot(t *testing.T, snap *Snapshot, embedder Embedder) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "album.idx")
	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	return NewEngine(NewViewCache(3), embedder, path)
}

func TestSearchByTextTopKAndThreshold(t *testing.T) {
	// Unit vectors at decreasing angles from the query (1,0,0,0):
	// scores 1.0, ~0.894, ~0.707, ~0.447, 0.
	vectors := [][]float32{
		{1, 0, 0, 0},
		{2, 1, 0, 0},
		{1, 1, 0, 0},
		{1, 2, 0, 0},
		{0, 1, 0, 0},
	}
	snap := testSnapshot(5, func(i int) []float32 { return vectors[i] })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{
		textVec: func(string) []float32 { return []float32{1, 0, 0, 0} },
	})

	tests := []struct {
		name     string
		topK     int
		minScore float64
		want     int
	}{
		{"top 3 no floor", 3, 0, 3},
		{"floor filters after selection", 3, 0.8, 2},
		{"floor higher than all", 3, 1.1, 0},
		{"topK larger than corpus", 10, 0.2, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := engine.SearchByText(context.Background(), "query", tc.topK, tc.minScore)
			if err != nil {
				t.Fatalf("SearchByText: %v", err)
			}
			if len(matches) != tc.want {
				t.Fatalf("got %d matches; want %d", len(matches), tc.want)
			}
			for i := 1; i < len(matches); i++ {
				if matches[i].Score > matches[i-1].Score {
					t.Errorf("scores not descending: %v then %v", matches[i-1].Score, matches[i].Score)
				}
			}
			for _, m := range matches {
				if m.Score < tc.minScore {
					t.Errorf("match %q below floor: %v < %v", m.Filepath, m.Score, tc.minScore)
				}
			}
		})
	}
}

func TestSearchTieBreakByStoredOrder(t *testing.T) {
	// Three identical vectors: selection order must follow storage order.
	snap := testSnapshot(3, func(int) []float32 { return []float32{1, 0} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{
		textVec: func(string) []float32 { return []float32{1, 0} },
	})

	matches, err := engine.SearchByText(context.Background(), "q", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches; want 2", len(matches))
	}
	if matches[0].Filepath != snap.Filepaths[0] || matches[1].Filepath != snap.Filepaths[1] {
		t.Errorf("tie-break violated stored order: %v", matches)
	}
}

func TestSequentialWraparound(t *testing.T) {
	const n = 9
	snap := testSnapshot(n, func(i int) []float32 { return []float32{1} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})

	seen := map[string]int{}
	current := ""
	var first string
	for i := 0; i < n; i++ {
		rec, err := engine.Next(current)
		if err != nil {
			t.Fatalf("Next(%q): %v", current, err)
		}
		if i == 0 {
			first = rec.Filepath
			// testSnapshot modtimes ascend with index, so the first
			// sequential record is the first stored record.
			if first != snap.Filepaths[0] {
				t.Errorf("first record = %q; want %q", first, snap.Filepaths[0])
			}
		}
		seen[rec.Filepath]++
		current = rec.Filepath
	}

	if len(seen) != n {
		t.Fatalf("one pass visited %d distinct images; want %d", len(seen), n)
	}
	for path, count := range seen {
		if count != 1 {
			t.Errorf("image %q visited %d times in one pass", path, count)
		}
	}

	// The n+1-th call wraps to the first image.
	rec, err := engine.Next(current)
	if err != nil {
		t.Fatalf("wraparound Next: %v", err)
	}
	if rec.Filepath != first {
		t.Errorf("wraparound returned %q; want %q", rec.Filepath, first)
	}
}

func TestNextUnknownCurrent(t *testing.T) {
	snap := testSnapshot(2, func(int) []float32 { return []float32{1} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})

	if _, err := engine.Next("/photos/unknown.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Next with unknown current = %v; want ErrNotFound", err)
	}
}

func TestRandomWithinBounds(t *testing.T) {
	snap := testSnapshot(4, func(int) []float32 { return []float32{1} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})

	valid := map[string]bool{}
	for _, fp := range snap.Filepaths {
		valid[fp] = true
	}
	for i := 0; i < 50; i++ {
		rec, err := engine.Random()
		if err != nil {
			t.Fatalf("Random: %v", err)
		}
		if !valid[rec.Filepath] {
			t.Fatalf("Random returned unknown path %q", rec.Filepath)
		}
	}
}

func TestGetAndRemove(t *testing.T) {
	snap := testSnapshot(5, func(i int) []float32 { return []float32{float32(i), 1} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})
	target := snap.Filepaths[2]

	rec, err := engine.Get(target)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Filepath != target {
		t.Errorf("Get returned %q; want %q", rec.Filepath, target)
	}

	if err := engine.Remove(target); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// Removed image is gone; all others remain and stay aligned.
	if _, err := engine.Get(target); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after remove = %v; want ErrNotFound", err)
	}
	count, err := engine.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("Count after remove = %d; want 4", count)
	}
	for i, fp := range snap.Filepaths {
		if fp == target {
			continue
		}
		got, err := engine.Get(fp)
		if err != nil {
			t.Errorf("record %q lost after unrelated removal: %v", fp, err)
			continue
		}
		if got.ModTime != snap.ModTimes[i] {
			t.Errorf("record %q modtime shifted after removal", fp)
		}
	}

	if err := engine.Remove("/photos/unknown.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove of unknown = %v; want ErrNotFound", err)
	}
}

func TestIterate(t *testing.T) {
	snap := testSnapshot(6, func(int) []float32 { return []float32{1} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})

	ordered, err := engine.Iterate(false)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(ordered) != 6 {
		t.Fatalf("Iterate returned %d records; want 6", len(ordered))
	}
	for i, rec := range ordered {
		if rec.Filepath != snap.Filepaths[i] {
			t.Errorf("storage order broken at %d: %q", i, rec.Filepath)
		}
	}

	shuffled, err := engine.Iterate(true)
	if err != nil {
		t.Fatalf("Iterate(random): %v", err)
	}
	if len(shuffled) != 6 {
		t.Fatalf("random Iterate returned %d records; want 6", len(shuffled))
	}
	seen := map[string]bool{}
	for _, rec := range shuffled {
		seen[rec.Filepath] = true
	}
	if len(seen) != 6 {
		t.Errorf("random Iterate repeated or dropped records")
	}
}

func TestFindDuplicateClusters(t *testing.T) {
	const n = 8
	snap := &Snapshot{}
	for i := 0; i < n-2; i++ {
		// Distinct, well separated unit vectors.
		angle := float64(i+1) * 0.35
		snap.Append(
			fmt.Sprintf("/photos/distinct%02d.jpg", i),
			[]float32{float32(math.Cos(angle)), float32(math.Sin(angle)), float32(i % 2), 1},
			float64(i), nil,
		)
	}
	// Two byte-identical images embed identically.
	dup := []float32{0.1, 0.9, 0.3, 0.2}
	snap.Append("/photos/dup_a.jpg", dup, 100, nil)
	snap.Append("/photos/dup_b.jpg", append([]float32(nil), dup...), 101, nil)

	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})
	clusters, err := engine.FindDuplicateClusters(0.995)
	if err != nil {
		t.Fatalf("FindDuplicateClusters: %v", err)
	}

	if len(clusters) != 1 {
		t.Fatalf("got %d clusters %v; want exactly 1", len(clusters), clusters)
	}
	if len(clusters[0]) != 2 {
		t.Fatalf("cluster size = %d; want 2", len(clusters[0]))
	}
	if clusters[0][0] != "/photos/dup_a.jpg" || clusters[0][1] != "/photos/dup_b.jpg" {
		t.Errorf("cluster members = %v", clusters[0])
	}
}

func TestFindDuplicateClustersEmpty(t *testing.T) {
	snap := testSnapshot(1, func(int) []float32 { return []float32{1, 0} })
	engine := saveQuerySnapshot(t, snap, &fakeEmbedder{})

	clusters, err := engine.FindDuplicateClusters(0.99)
	if err != nil {
		t.Fatalf("FindDuplicateClusters: %v", err)
	}
	if len(clusters) != 0 {
		t.Errorf("single image produced clusters: %v", clusters)
	}
}
