package index

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// EmbeddingDim is the output dimension of the CLIP ViT-B/32 model.
const EmbeddingDim = 512

// Snapshot is the on-disk representation of one album's index: four
// parallel slices, positionally aligned. Filepaths are absolute and
// slash-normalized and act as the unique key.
type Snapshot struct {
	Filepaths  []string
	Embeddings [][]float32
	ModTimes   []float64
	Metadata   []json.RawMessage
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.Filepaths)
}

// Validate checks the parallel-array alignment invariant.
func (s *Snapshot) Validate() error {
	n := len(s.Filepaths)
	if len(s.Embeddings) != n || len(s.ModTimes) != n || len(s.Metadata) != n {
		return fmt.Errorf("%w: filepaths=%d embeddings=%d modtimes=%d metadata=%d",
			ErrCorrupt, n, len(s.Embeddings), len(s.ModTimes), len(s.Metadata))
	}
	return nil
}

// Append adds a single record, keeping all four slices aligned.
func (s *Snapshot) Append(path string, embedding []float32, modTime float64, metadata json.RawMessage) {
	s.Filepaths = append(s.Filepaths, path)
	s.Embeddings = append(s.Embeddings, embedding)
	s.ModTimes = append(s.ModTimes, modTime)
	s.Metadata = append(s.Metadata, metadata)
}

// Remove deletes the record with the given filepath from the raw arrays.
// Returns ErrNotFound if the filepath is not present.
func (s *Snapshot) Remove(path string) error {
	for i, fp := range s.Filepaths {
		if fp != path {
			continue
		}
		s.Filepaths = append(s.Filepaths[:i], s.Filepaths[i+1:]...)
		s.Embeddings = append(s.Embeddings[:i], s.Embeddings[i+1:]...)
		s.ModTimes = append(s.ModTimes[:i], s.ModTimes[i+1:]...)
		s.Metadata = append(s.Metadata[:i], s.Metadata[i+1:]...)
		return nil
	}
	return fmt.Errorf("image %q: %w", path, ErrNotFound)
}

// FilterOut drops every record whose filepath is in the given set and
// returns the number of records removed.
func (s *Snapshot) FilterOut(paths map[string]bool) int {
	if len(paths) == 0 {
		return 0
	}
	kept := 0
	for i, fp := range s.Filepaths {
		if paths[fp] {
			continue
		}
		s.Filepaths[kept] = s.Filepaths[i]
		s.Embeddings[kept] = s.Embeddings[i]
		s.ModTimes[kept] = s.ModTimes[i]
		s.Metadata[kept] = s.Metadata[i]
		kept++
	}
	removed := len(s.Filepaths) - kept
	s.Filepaths = s.Filepaths[:kept]
	s.Embeddings = s.Embeddings[:kept]
	s.ModTimes = s.ModTimes[:kept]
	s.Metadata = s.Metadata[:kept]
	return removed
}

// Concat appends all records of other to s. An empty s takes the
// embedding dimensionality of other.
func (s *Snapshot) Concat(other *Snapshot) {
	s.Filepaths = append(s.Filepaths, other.Filepaths...)
	s.Embeddings = append(s.Embeddings, other.Embeddings...)
	s.ModTimes = append(s.ModTimes, other.ModTimes...)
	s.Metadata = append(s.Metadata, other.Metadata...)
}

// LoadSnapshot reads a snapshot file. Returns ErrNotFound if the file
// does not exist and ErrCorrupt if the arrays are misaligned.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("opening snapshot %q: %w", path, err)
	}
	defer f.Close()

	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", path, err)
	}
	return &snap, nil
}

// SaveSnapshot rewrites the snapshot file wholesale, creating parent
// directories if needed. A sibling lock file serializes writers to the
// same path; readers of stale views are handled by cache invalidation,
// which the caller must perform after a successful save.
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("snapshot %q: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot %q: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot %q: %w", path, err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		return fmt.Errorf("encoding snapshot %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing snapshot %q: %w", path, err)
	}
	return nil
}
