package curation

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// clusteredEmbeddings produces three tight clusters around distinct
// anchors, cluster membership i%3.
func clusteredEmbeddings(n int) [][]float32 {
	anchors := [][]float32{
		{10, 0, 0},
		{0, 10, 0},
		{0, 0, 10},
	}
	out := make([][]float32, n)
	for i := range out {
		a := anchors[i%3]
		jitter := float32(i) * 0.01
		out[i] = []float32{a[0] + jitter, a[1] + jitter, a[2] + jitter}
	}
	return out
}

func TestSelectFPSDeterministic(t *testing.T) {
	emb := clusteredEmbeddings(30)

	first := SelectFPS(emb, 5, 42)
	second := SelectFPS(emb, 5, 42)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed gave different selections: %v vs %v", first, second)
	}
	if len(first) != 5 {
		t.Fatalf("selected %d; want 5", len(first))
	}
	seen := map[int]bool{}
	for _, i := range first {
		if seen[i] {
			t.Errorf("index %d selected twice", i)
		}
		seen[i] = true
		if i < 0 || i >= len(emb) {
			t.Errorf("index %d out of range", i)
		}
	}
}

func TestSelectFPSSpreadsAcrossClusters(t *testing.T) {
	emb := clusteredEmbeddings(30)

	// Farthest-point sampling on 3 well-separated clusters must touch
	// all of them when picking 3 points.
	selected := SelectFPS(emb, 3, 1)
	clusters := map[int]bool{}
	for _, i := range selected {
		clusters[i%3] = true
	}
	if len(clusters) != 3 {
		t.Errorf("selection %v covered clusters %v; want all 3", selected, clusters)
	}
}

func TestSelectFPSBounds(t *testing.T) {
	emb := clusteredEmbeddings(4)
	if got := SelectFPS(emb, 0, 42); got != nil {
		t.Errorf("n=0 returned %v", got)
	}
	if got := SelectFPS(emb, 10, 42); len(got) != 4 {
		t.Errorf("n>total returned %d indices; want all 4", len(got))
	}
	if got := SelectFPS(emb, 4, 42); len(got) != 4 {
		t.Errorf("n=total returned %d indices; want 4", len(got))
	}
}

func TestSelectKMeans(t *testing.T) {
	emb := clusteredEmbeddings(30)

	selected := SelectKMeans(emb, 3, 42)
	if len(selected) != 3 {
		t.Fatalf("selected %d; want 3", len(selected))
	}
	seen := map[int]bool{}
	for _, i := range selected {
		if seen[i] {
			t.Errorf("index %d selected twice", i)
		}
		seen[i] = true
		if i < 0 || i >= len(emb) {
			t.Errorf("index %d out of range", i)
		}
	}

	again := SelectKMeans(emb, 3, 42)
	if !reflect.DeepEqual(selected, again) {
		t.Errorf("same seed gave different selections: %v vs %v", selected, again)
	}
}

func TestSelectKMeansBounds(t *testing.T) {
	emb := clusteredEmbeddings(4)
	if got := SelectKMeans(emb, 0, 42); got != nil {
		t.Errorf("n=0 returned %v", got)
	}
	if got := SelectKMeans(emb, 9, 42); len(got) != 4 {
		t.Errorf("n>total returned %d indices; want all 4", len(got))
	}
	if got := SelectKMeans(nil, 3, 42); got != nil {
		t.Errorf("empty input returned %v", got)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExport(t *testing.T) {
	src := t.TempDir()
	files := []string{
		writeFile(t, filepath.Join(src, "apple", "0001.png"), "apple-1"),
		writeFile(t, filepath.Join(src, "orange", "0001.png"), "orange-1"),
		writeFile(t, filepath.Join(src, "apple", "0002.png"), "apple-2"),
	}
	out := filepath.Join(t.TempDir(), "dataset")

	result, err := Export(files, out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Copied != 3 {
		t.Fatalf("copied %d; want 3 (errors: %v)", result.Copied, result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors: %v", result.Errors)
	}

	// First 0001.png keeps its name; the colliding one gets the parent
	// directory prefix.
	for name, content := range map[string]string{
		"0001.png":        "apple-1",
		"orange_0001.png": "orange-1",
		"0002.png":        "apple-2",
	} {
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Errorf("expected export %q: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("export %q content = %q; want %q", name, data, content)
		}
	}
}

func TestExportCounterSuffix(t *testing.T) {
	src := t.TempDir()
	// Three same-named files under same-named parents exhaust both the
	// plain name and the parent-prefixed name.
	files := []string{
		writeFile(t, filepath.Join(src, "a", "pics", "img.png"), "one"),
		writeFile(t, filepath.Join(src, "b", "pics", "img.png"), "two"),
		writeFile(t, filepath.Join(src, "c", "pics", "img.png"), "three"),
	}
	out := filepath.Join(t.TempDir(), "dataset")

	result, err := Export(files, out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Copied != 3 {
		t.Fatalf("copied %d; want 3 (errors: %v)", result.Copied, result.Errors)
	}
	for _, name := range []string{"img.png", "pics_img.png", "pics_img_1.png"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected export %q: %v", name, err)
		}
	}
}

func TestExportMissingSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dataset")
	existing := writeFile(t, filepath.Join(t.TempDir(), "ok.png"), "ok")

	result, err := Export([]string{existing, "/nonexistent/gone.png"}, out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Copied != 1 {
		t.Errorf("copied %d; want 1", result.Copied)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v; want exactly one", result.Errors)
	}
}

func TestExportRequiresOutputDir(t *testing.T) {
	if _, err := Export([]string{"/photos/a.jpg"}, ""); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}
