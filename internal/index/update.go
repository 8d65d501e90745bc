package index

import (
	"context"
	"log"
	"sort"
)

// Update diffs the files currently under rootsOrPaths against the
// existing snapshot at snapshotPath, removes entries whose files have
// disappeared, indexes only the new files and persists the merged
// result. The snapshot must already exist; Update on a missing
// snapshot fails with ErrNotFound (use Create first).
func (ix *Indexer) Update(ctx context.Context, cache *ViewCache, snapshotPath string, rootsOrPaths []string) (*Result, error) {
	existing, err := LoadSnapshot(snapshotPath)
	if err != nil {
		return nil, err
	}

	ix.progress(0, 0, "scanning")
	candidates, err := ix.Scan(rootsOrPaths)
	if err != nil {
		return nil, err
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		candidateSet[p] = true
	}
	existingSet := make(map[string]bool, existing.Len())
	for _, p := range existing.Filepaths {
		existingSet[p] = true
	}

	var newPaths []string
	for _, p := range candidates {
		if !existingSet[p] {
			newPaths = append(newPaths, p)
		}
	}
	missing := map[string]bool{}
	for _, p := range existing.Filepaths {
		if !candidateSet[p] {
			missing[p] = true
		}
	}

	removed := existing.FilterOut(missing)
	if removed > 0 {
		log.Printf("removing %d missing images from index %s", removed, snapshotPath)
	}

	if len(newPaths) == 0 {
		// Nothing new: persist the filtered snapshot so removals stick.
		if err := SaveSnapshot(snapshotPath, existing); err != nil {
			return nil, err
		}
		cache.Invalidate(snapshotPath)
		ix.progress(existing.Len(), existing.Len(), "completed")
		return &Result{Snapshot: *existing, Removed: removed}, nil
	}

	sort.Strings(newPaths)
	built, err := ix.Build(ctx, newPaths)
	if err != nil {
		return built, err
	}

	// Even when every new image failed, the removals still need to be
	// persisted; the result is then the filtered existing data plus the
	// failure list.
	existing.Concat(&built.Snapshot)
	if err := SaveSnapshot(snapshotPath, existing); err != nil {
		return nil, err
	}
	cache.Invalidate(snapshotPath)

	ix.progress(existing.Len(), existing.Len(), "completed")
	log.Printf("updated index %s: %d images, %d new, %d removed, %d failed",
		snapshotPath, existing.Len(), built.Len(), removed, len(built.Failures))
	return &Result{Snapshot: *existing, Failures: built.Failures, Removed: removed}, nil
}
