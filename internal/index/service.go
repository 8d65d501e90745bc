package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
)

// Service runs indexing operations for albums, synchronously for the
// CLI and as background goroutines for the HTTP API. One Service per
// process; the registry gates concurrent operations per album key.
type Service struct {
	Registry    *ProgressRegistry
	Cache       *ViewCache
	Embedder    Embedder
	MinFileSize int64
}

// NewService wires a service with a fresh registry and view cache.
func NewService(embedder Embedder, minFileSize int64) *Service {
	return &Service{
		Registry:    NewProgressRegistry(),
		Cache:       NewViewCache(ViewCacheSize),
		Embedder:    embedder,
		MinFileSize: minFileSize,
	}
}

func (s *Service) indexer(onProgress ProgressFunc, shouldStop func() bool) *Indexer {
	return &Indexer{
		Embedder:    s.Embedder,
		MinFileSize: s.MinFileSize,
		OnProgress:  onProgress,
		ShouldStop:  shouldStop,
	}
}

// Engine returns a query engine bound to one snapshot path, sharing the
// service's view cache.
func (s *Service) Engine(snapshotPath string) *Engine {
	return NewEngine(s.Cache, s.Embedder, snapshotPath)
}

// CreateIndex builds an album index from scratch, synchronously.
func (s *Service) CreateIndex(ctx context.Context, snapshotPath string, roots []string, onProgress ProgressFunc) (*Result, error) {
	return s.indexer(onProgress, nil).Create(ctx, s.Cache, snapshotPath, roots, true)
}

// UpdateIndex incrementally refreshes an existing album index,
// synchronously.
func (s *Service) UpdateIndex(ctx context.Context, snapshotPath string, roots []string, onProgress ProgressFunc) (*Result, error) {
	return s.indexer(onProgress, nil).Update(ctx, s.Cache, snapshotPath, roots)
}

// IndexAsync starts a background create-or-update for an album: update
// when the snapshot exists, full build otherwise. Returns ErrConflict
// if an operation is already running for the key. The directory walk
// and the embedding loop both run inside the worker goroutine, so the
// caller returns immediately.
func (s *Service) IndexAsync(albumKey, snapshotPath string, roots []string) error {
	progress, err := s.Registry.Start(albumKey)
	if err != nil {
		return err
	}

	go s.runIndexOperation(progress.AlbumKey, snapshotPath, roots)
	return nil
}

func (s *Service) runIndexOperation(albumKey, snapshotPath string, roots []string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.Registry.SetError(albumKey, fmt.Sprintf("panic: %v", rec))
			log.Printf("index operation for album %q panicked: %v", albumKey, rec)
		}
	}()

	onProgress := func(processed, total int, step string) {
		switch step {
		case "scanning":
			s.Registry.SetStatus(albumKey, StatusScanning, step)
		case "saving":
			s.Registry.SetStatus(albumKey, StatusSaving, step)
		case "completed", "cancelled":
			// Terminal transitions are handled below.
		default:
			s.Registry.Update(albumKey, processed, total, step)
		}
	}
	shouldStop := func() bool { return s.Registry.Cancelled(albumKey) }
	ix := s.indexer(onProgress, shouldStop)

	var err error
	if _, statErr := os.Stat(snapshotPath); statErr == nil {
		log.Printf("updating existing index for album %q", albumKey)
		_, err = ix.Update(context.Background(), s.Cache, snapshotPath, roots)
	} else {
		log.Printf("creating new index for album %q", albumKey)
		_, err = ix.Create(context.Background(), s.Cache, snapshotPath, roots, true)
	}

	switch {
	case errors.Is(err, context.Canceled):
		s.Registry.MarkCancelled(albumKey)
		log.Printf("index operation for album %q cancelled", albumKey)
	case err != nil:
		s.Registry.SetError(albumKey, err.Error())
		log.Printf("index operation for album %q failed: %v", albumKey, err)
	default:
		s.Registry.Complete(albumKey, "completed")
		log.Printf("index operation for album %q completed", albumKey)
	}
}

// Cancel requests cooperative cancellation of a running operation.
// Returns ErrNotFound when nothing is running for the key.
func (s *Service) Cancel(albumKey string) error {
	if !s.Registry.Cancel(albumKey) {
		return fmt.Errorf("no active operation for album %q: %w", albumKey, ErrNotFound)
	}
	return nil
}
