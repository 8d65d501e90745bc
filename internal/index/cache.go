package index

import (
	"encoding/json"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/viterin/vek/vek32"
)

// ViewCacheSize bounds the number of snapshots kept open at once. Small
// on purpose: slideshows usually touch one or two albums at a time.
const ViewCacheSize = 3

// View is the in-memory lookup structure derived from one snapshot. It
// is a pure function of the snapshot's on-disk bytes and must never be
// mutated; mutations go through the snapshot and a cache invalidation.
type View struct {
	Filepaths  []string
	Embeddings [][]float32
	ModTimes   []float64
	Metadata   []json.RawMessage

	sorted    []int          // sorted position -> raw index, modtime ascending
	posByPath map[string]int // filepath -> position in sorted view
	normed    [][]float32    // unit-norm embeddings, raw order
}

// Len returns the number of records in the view.
func (v *View) Len() int {
	return len(v.Filepaths)
}

// SortedIndex returns the raw-array index for a sorted-view position.
func (v *View) SortedIndex(pos int) int {
	return v.sorted[pos]
}

// Pos returns the position of a filepath in the modtime-sorted view.
func (v *View) Pos(path string) (int, bool) {
	pos, ok := v.posByPath[path]
	return pos, ok
}

// RawIndex returns the position of a filepath in the raw arrays.
func (v *View) RawIndex(path string) (int, bool) {
	pos, ok := v.posByPath[path]
	if !ok {
		return 0, false
	}
	return v.sorted[pos], true
}

// Normed returns the unit-normalized embedding for a raw index. Rows
// with zero norm come back as-is.
func (v *View) Normed(i int) []float32 {
	return v.normed[i]
}

func buildView(snap *Snapshot) *View {
	n := snap.Len()
	v := &View{
		Filepaths:  snap.Filepaths,
		Embeddings: snap.Embeddings,
		ModTimes:   snap.ModTimes,
		Metadata:   snap.Metadata,
		sorted:     make([]int, n),
		posByPath:  make(map[string]int, n),
		normed:     make([][]float32, n),
	}
	for i := range v.sorted {
		v.sorted[i] = i
	}
	// Stable keeps insertion order for equal modtimes, which makes
	// "next image" deterministic.
	sort.SliceStable(v.sorted, func(a, b int) bool {
		return v.ModTimes[v.sorted[a]] < v.ModTimes[v.sorted[b]]
	})
	for pos, raw := range v.sorted {
		v.posByPath[v.Filepaths[raw]] = pos
	}
	for i, emb := range v.Embeddings {
		v.normed[i] = normalize(emb)
	}
	return v
}

func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	norm := math.Sqrt(float64(vek32.Dot(v, v)))
	if norm == 0 {
		return v
	}
	return vek32.MulNumber(v, float32(1/norm))
}

// ViewCache memoizes Views by snapshot file path with LRU eviction.
// Every code path that writes a snapshot must call Invalidate for that
// exact path before returning; a stale view means wrong search results,
// a wrong "next image" and phantom deleted images.
type ViewCache struct {
	views *lru.Cache[string, *View]
}

// NewViewCache creates a cache bounded to capacity entries.
func NewViewCache(capacity int) *ViewCache {
	if capacity <= 0 {
		capacity = ViewCacheSize
	}
	cache, _ := lru.New[string, *View](capacity)
	return &ViewCache{views: cache}
}

// Open returns the memoized view for a snapshot path, loading and
// indexing the snapshot on a miss.
func (c *ViewCache) Open(path string) (*View, error) {
	if view, ok := c.views.Get(path); ok {
		return view, nil
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	view := buildView(snap)
	c.views.Add(path, view)
	return view, nil
}

// Invalidate drops the memoized view for a path, if any.
func (c *ViewCache) Invalidate(path string) {
	c.views.Remove(path)
}
