package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeEmbedder returns deterministic vectors without a model server.
// Image vectors are derived from the payload length so distinct files
// get distinct embeddings; text vectors are fixed per query.
type fakeEmbedder struct {
	imageVec func(data []byte) []float32
	textVec  func(text string) []float32
	failOn   func(data []byte) bool
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if f.failOn != nil && f.failOn(data) {
		return nil, fmt.Errorf("model refused image")
	}
	if f.imageVec != nil {
		return f.imageVec(data), nil
	}
	v := float32(len(data)%97) + 1
	return []float32{v, v * 2, 1, 0}, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.textVec != nil {
		return f.textVec(text), nil
	}
	return []float32{1, 0, 0, 0}, nil
}

// writeTestJPEG writes a decodable JPEG of roughly the requested pixel
// size into dir and returns its canonical path.
func writeTestJPEG(t *testing.T, dir, name string, px int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, px, px))
	for y := 0; y < px; y++ {
		for x := 0; x < px; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8((x + y) % 256), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing test jpeg: %v", err)
	}
	canonical, err := canonicalPath(path)
	if err != nil {
		t.Fatalf("canonicalizing %s: %v", path, err)
	}
	return canonical
}

// setModTime staggers file modification times so sequential-order tests
// are deterministic.
func setModTime(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	mt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("setting modtime on %s: %v", path, err)
	}
}

// testSnapshot builds an aligned snapshot with n records and embedding
// vectors supplied by vec.
func testSnapshot(n int, vec func(i int) []float32) *Snapshot {
	snap := &Snapshot{}
	for i := 0; i < n; i++ {
		snap.Append(
			fmt.Sprintf("/photos/img%03d.jpg", i),
			vec(i),
			float64(1700000000+i),
			json.RawMessage(`{}`),
		)
	}
	return snap
}
