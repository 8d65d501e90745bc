package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/clipslide/internal/imaging"
	"github.com/kozaktomas/clipslide/internal/metadata"
)

// DefaultMinFileSize excludes thumbnail and preview files that common
// photo tools drop alongside full images.
const DefaultMinFileSize = 100 * 1024

// embedMaxSize bounds the longer image side before transport to the
// embedding service. CLIP ViT-B/32 sees 224px anyway.
const embedMaxSize = 512

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
}

// Embedder produces fixed-dimension CLIP embeddings for images and text.
type Embedder interface {
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ProgressFunc receives per-image and phase-transition updates during a
// build. total may still grow while scanning.
type ProgressFunc func(processed, total int, step string)

// Result is the outcome of a build or update batch. Failures lists the
// files that could not be processed; a failed file never aborts the
// batch.
type Result struct {
	Snapshot
	Failures []string
	Removed  int
}

// Indexer walks directories, filters candidate images and computes
// their embeddings.
type Indexer struct {
	Embedder    Embedder
	MinFileSize int64 // strictly-greater-than threshold; 0 means DefaultMinFileSize

	// OnProgress, when set, is called after each image and at phase
	// transitions. ShouldStop, when set, is polled between images for
	// cooperative cancellation.
	OnProgress ProgressFunc
	ShouldStop func() bool
}

func (ix *Indexer) minSize() int64 {
	if ix.MinFileSize > 0 {
		return ix.MinFileSize
	}
	return DefaultMinFileSize
}

func (ix *Indexer) progress(processed, total int, step string) {
	if ix.OnProgress != nil {
		ix.OnProgress(processed, total, step)
	}
}

func (ix *Indexer) stopped() bool {
	return ix.ShouldStop != nil && ix.ShouldStop()
}

// Scan enumerates candidate image files under the given paths. Each
// entry may be a directory (walked recursively) or a single file. A
// file qualifies when its extension is in the allow-list and its size
// is strictly greater than the minimum-size threshold. Results are
// absolute, slash-normalized and sorted.
func (ix *Indexer) Scan(rootsOrPaths []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}

	add := func(path string, size int64) {
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] || size <= ix.minSize() {
			return
		}
		canonical, err := canonicalPath(path)
		if err != nil || seen[canonical] {
			return
		}
		seen[canonical] = true
		files = append(files, canonical)
	}

	for _, root := range rootsOrPaths {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("image path %q: %w", root, ErrNotFound)
			}
			return nil, fmt.Errorf("stat %q: %w", root, err)
		}
		if !info.IsDir() {
			add(root, info.Size())
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtree: skip it, keep walking.
				log.Printf("warning: skipping %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			add(path, fi.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Build indexes the given files: decode, EXIF-orient, extract metadata,
// embed, record modtime. Per-image failures are collected, not raised.
func (ix *Indexer) Build(ctx context.Context, imagePaths []string) (*Result, error) {
	result := &Result{}
	total := len(imagePaths)
	ix.progress(0, total, "indexing started")

	for i, path := range imagePaths {
		if ix.stopped() {
			ix.progress(i, total, "cancelled")
			return result, context.Canceled
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec, err := ix.indexOne(ctx, path)
		if err != nil {
			log.Printf("error processing %s: %v", path, err)
			result.Failures = append(result.Failures, path)
			ix.progress(i+1, total, fmt.Sprintf("failed %s", filepath.Base(path)))
			continue
		}
		result.Append(rec.path, rec.embedding, rec.modTime, rec.metadata)
		ix.progress(i+1, total, fmt.Sprintf("indexed %s", filepath.Base(path)))
	}

	return result, nil
}

type record struct {
	path      string
	embedding []float32
	modTime   float64
	metadata  json.RawMessage
}

func (ix *Indexer) indexOne(ctx context.Context, path string) (record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record{}, fmt.Errorf("reading image: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return record{}, fmt.Errorf("stat image: %w", err)
	}

	meta := metadata.Extract(data)

	prepared, err := imaging.PrepareForEmbedding(data, embedMaxSize)
	if err != nil {
		return record{}, err
	}
	embedding, err := ix.Embedder.EmbedImage(ctx, prepared)
	if err != nil {
		return record{}, fmt.Errorf("computing embedding: %w", err)
	}

	canonical, err := canonicalPath(path)
	if err != nil {
		return record{}, err
	}
	return record{
		path:      canonical,
		embedding: embedding,
		modTime:   float64(info.ModTime().UnixNano()) / 1e9,
		metadata:  meta,
	}, nil
}

// Create builds a full index from the given roots. When persist is
// true the result is written to snapshotPath and the cached view for
// that path is invalidated.
func (ix *Indexer) Create(ctx context.Context, cache *ViewCache, snapshotPath string, rootsOrPaths []string, persist bool) (*Result, error) {
	ix.progress(0, 0, "scanning")
	paths, err := ix.Scan(rootsOrPaths)
	if err != nil {
		return nil, err
	}

	result, err := ix.Build(ctx, paths)
	if err != nil {
		return result, err
	}

	if persist {
		ix.progress(result.Len(), len(paths), "saving")
		if err := SaveSnapshot(snapshotPath, &result.Snapshot); err != nil {
			return result, err
		}
		cache.Invalidate(snapshotPath)
		log.Printf("indexed %d images and saved to %s", result.Len(), snapshotPath)
	}
	ix.progress(result.Len(), len(paths), "completed")
	return result, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	return filepath.ToSlash(abs), nil
}
