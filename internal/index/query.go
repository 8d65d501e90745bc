package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/viterin/vek/vek32"

	"github.com/kozaktomas/clipslide/internal/imaging"
)

// Default search shaping parameters. Text scores run numerically lower
// and noisier than image-to-image scores, hence the separate floors.
const (
	DefaultTopK          = 20
	DefaultImageMinScore = 0.6
	DefaultTextMinScore  = 0.2
)

// Match is one similarity-search hit.
type Match struct {
	Filepath string          `json:"filepath"`
	Score    float64         `json:"score"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Record is one indexed image as served to retrieval callers.
type Record struct {
	Filepath string          `json:"filepath"`
	ModTime  float64         `json:"modification_time"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Engine serves queries against one album's snapshot through the view
// cache. All reads go through the memoized view; all writes re-persist
// the snapshot and invalidate that view.
type Engine struct {
	cache    *ViewCache
	embedder Embedder
	path     string
}

// NewEngine binds a query engine to a snapshot path.
func NewEngine(cache *ViewCache, embedder Embedder, snapshotPath string) *Engine {
	return &Engine{cache: cache, embedder: embedder, path: snapshotPath}
}

// Count returns the number of indexed images.
func (e *Engine) Count() (int, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return 0, err
	}
	return view.Len(), nil
}

// SearchByImage embeds the query image the same way indexing does
// (decode, EXIF-correct, embed) and returns the top-K matches at or
// above minScore. minScore < 0 applies the image default.
func (e *Engine) SearchByImage(ctx context.Context, imageData []byte, topK int, minScore float64) ([]Match, error) {
	prepared, err := imaging.PrepareForEmbedding(imageData, embedMaxSize)
	if err != nil {
		return nil, err
	}
	query, err := e.embedder.EmbedImage(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("embedding query image: %w", err)
	}
	if minScore < 0 {
		minScore = DefaultImageMinScore
	}
	return e.searchByVector(query, topK, minScore)
}

// SearchByText embeds a natural-language query with the model's text
// encoder and returns the top-K matches at or above minScore.
// minScore < 0 applies the text default.
func (e *Engine) SearchByText(ctx context.Context, text string, topK int, minScore float64) ([]Match, error) {
	query, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query text: %w", err)
	}
	if minScore < 0 {
		minScore = DefaultTextMinScore
	}
	return e.searchByVector(query, topK, minScore)
}

// searchByVector scores every stored embedding by cosine similarity
// (dot product over unit-norm vectors), selects the top-K with stored
// order breaking ties, then applies the minimum-score floor. The floor
// comes after selection, so a low floor can return fewer than K results
// but never more.
func (e *Engine) searchByVector(query []float32, topK int, minScore float64) ([]Match, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	q := normalize(query)
	scores := make([]float64, view.Len())
	order := make([]int, view.Len())
	for i := range scores {
		scores[i] = float64(vek32.Dot(view.Normed(i), q))
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if len(order) > topK {
		order = order[:topK]
	}
	matches := make([]Match, 0, len(order))
	for _, i := range order {
		if scores[i] < minScore {
			continue
		}
		matches = append(matches, Match{
			Filepath: view.Filepaths[i],
			Score:    scores[i],
			Metadata: view.Metadata[i],
		})
	}
	return matches, nil
}

// Next returns the record after current in modification-time order,
// wrapping from last to first. An empty current returns the first
// record; an unknown current fails with ErrNotFound.
func (e *Engine) Next(current string) (Record, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return Record{}, err
	}
	if view.Len() == 0 {
		return Record{}, fmt.Errorf("index %q is empty: %w", e.path, ErrNotFound)
	}

	pos := 0
	if current != "" {
		cur, ok := view.Pos(current)
		if !ok {
			return Record{}, fmt.Errorf("image %q: %w", current, ErrNotFound)
		}
		pos = (cur + 1) % view.Len()
	}
	return e.recordAt(view, view.SortedIndex(pos)), nil
}

// Random returns a uniformly random record from the raw storage order,
// deliberately decoupled from the sequential slideshow order.
func (e *Engine) Random() (Record, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return Record{}, err
	}
	if view.Len() == 0 {
		return Record{}, fmt.Errorf("index %q is empty: %w", e.path, ErrNotFound)
	}
	return e.recordAt(view, rand.IntN(view.Len())), nil
}

// Get returns the record for an exact filepath, ErrNotFound if absent.
func (e *Engine) Get(path string) (Record, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return Record{}, err
	}
	raw, ok := view.RawIndex(path)
	if !ok {
		return Record{}, fmt.Errorf("image %q: %w", path, ErrNotFound)
	}
	return e.recordAt(view, raw), nil
}

// Remove deletes one image from the snapshot, persists and invalidates.
// The deletion works on the raw arrays; indexing through the sorted
// view would corrupt alignment.
func (e *Engine) Remove(path string) error {
	snap, err := LoadSnapshot(e.path)
	if err != nil {
		return err
	}
	if err := snap.Remove(path); err != nil {
		return err
	}
	if err := SaveSnapshot(e.path, snap); err != nil {
		return err
	}
	e.cache.Invalidate(e.path)
	return nil
}

// Iterate returns all records, in storage order or shuffled.
func (e *Engine) Iterate(random bool) ([]Record, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return nil, err
	}
	indices := make([]int, view.Len())
	for i := range indices {
		indices[i] = i
	}
	if random {
		rand.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})
	}
	records := make([]Record, len(indices))
	for i, idx := range indices {
		records[i] = e.recordAt(view, idx)
	}
	return records, nil
}

// Embeddings exposes the raw embedding matrix and filepaths for offline
// consumers (dataset curation). Storage order.
func (e *Engine) Embeddings() ([][]float32, []string, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return nil, nil, err
	}
	return view.Embeddings, view.Filepaths, nil
}

func (e *Engine) recordAt(view *View, raw int) Record {
	return Record{
		Filepath: view.Filepaths[raw],
		ModTime:  view.ModTimes[raw],
		Metadata: view.Metadata[raw],
	}
}
