// Package curation selects representative image subsets from stored
// embeddings for ML training-set construction and exports the selected
// files. It consumes the query engine's raw embedding data and never
// touches the index itself.
package curation

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/viterin/vek/vek32"
	"golang.org/x/text/unicode/norm"
)

// SelectFPS picks n indices by farthest-point sampling: start from a
// seeded random point, then repeatedly take the point farthest from the
// current selection. Deterministic for a given seed.
func SelectFPS(embeddings [][]float32, n int, seed int64) []int {
	total := len(embeddings)
	if n >= total {
		return allIndices(total)
	}
	if n <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	selected := make([]int, 0, n)
	first := rng.Intn(total)
	selected = append(selected, first)

	// minDist[i] tracks the distance from i to its nearest selected point.
	minDist := make([]float64, total)
	for i := range minDist {
		minDist[i] = squaredDistance(embeddings[i], embeddings[first])
	}

	for len(selected) < n {
		far, farDist := -1, -1.0
		for i, d := range minDist {
			if d > farDist {
				far, farDist = i, d
			}
		}
		selected = append(selected, far)
		for i := range minDist {
			if d := squaredDistance(embeddings[i], embeddings[far]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return selected
}

// SelectKMeans clusters the embeddings into n groups with Lloyd's
// algorithm and returns the index nearest each centroid. Deterministic
// for a given seed.
func SelectKMeans(embeddings [][]float32, n int, seed int64) []int {
	total := len(embeddings)
	if n >= total {
		return allIndices(total)
	}
	if n <= 0 || total == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	dim := len(embeddings[0])

	// Initialize centroids from a random sample without replacement.
	perm := rng.Perm(total)
	centroids := make([][]float32, n)
	for i := 0; i < n; i++ {
		centroids[i] = append([]float32(nil), embeddings[perm[i]]...)
	}

	assignment := make([]int, total)
	const maxIterations = 50
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, emb := range embeddings {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := squaredDistance(emb, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, n)
		counts := make([]int, n)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, emb := range embeddings {
			c := assignment[i]
			counts[c]++
			for d, v := range emb {
				sums[c][d] += float64(v)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random point.
				centroids[c] = append([]float32(nil), embeddings[rng.Intn(total)]...)
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	// Pick the real image closest to each centroid.
	selected := make([]int, 0, n)
	seen := map[int]bool{}
	for _, centroid := range centroids {
		best, bestDist := -1, math.Inf(1)
		for i, emb := range embeddings {
			if seen[i] {
				continue
			}
			if d := squaredDistance(emb, centroid); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			seen[best] = true
			selected = append(selected, best)
		}
	}
	return selected
}

// ExportResult reports the outcome of a dataset export.
type ExportResult struct {
	Copied int      `json:"copied"`
	Errors []string `json:"errors,omitempty"`
}

// Export copies the selected files into outDir, creating it if needed.
// Name collisions are resolved by prefixing the parent directory name
// (apple/0001.png vs orange/0001.png), then by a counter suffix. Names
// are normalized to NFC so exports behave the same across filesystems.
func Export(filenames []string, outDir string) (ExportResult, error) {
	if outDir == "" {
		return ExportResult{}, fmt.Errorf("output folder is required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("could not create output folder: %w", err)
	}

	var result ExportResult
	for _, src := range filenames {
		if _, err := os.Stat(src); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src, err))
			continue
		}
		dest := destinationPath(src, outDir)
		if err := copyFile(src, dest); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src, err))
			continue
		}
		result.Copied++
	}
	return result, nil
}

func destinationPath(src, outDir string) string {
	base := norm.NFC.String(filepath.Base(src))
	parent := norm.NFC.String(filepath.Base(filepath.Dir(src)))
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	dest := filepath.Join(outDir, base)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	dest = filepath.Join(outDir, parent+"_"+base)
	counter := 1
	for {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(outDir, fmt.Sprintf("%s_%s_%d%s", parent, stem, counter, ext))
		counter++
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func squaredDistance(a, b []float32) float64 {
	d := vek32.Sub(a, b)
	return float64(vek32.Dot(d, d))
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
