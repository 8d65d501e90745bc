package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an indexing operation.
type Status string

const (
	StatusScanning  Status = "scanning"
	StatusIndexing  Status = "indexing"
	StatusSaving    Status = "saving"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Progress describes one in-flight or finished indexing operation.
type Progress struct {
	OperationID     string  `json:"operation_id"`
	AlbumKey        string  `json:"album_key"`
	Status          Status  `json:"status"`
	CurrentStep     string  `json:"current_step"`
	ImagesProcessed int     `json:"images_processed"`
	TotalImages     int     `json:"total_images"`
	StartTime       time.Time `json:"start_time"`
	ErrorMessage    string  `json:"error_message,omitempty"`

	cancelled bool
}

// Percentage returns the completion percentage, 0 when the total is
// still unknown.
func (p *Progress) Percentage() float64 {
	if p.TotalImages == 0 {
		return 0
	}
	return float64(p.ImagesProcessed) / float64(p.TotalImages) * 100
}

// Elapsed returns the time since the operation started.
func (p *Progress) Elapsed() time.Duration {
	return time.Since(p.StartTime)
}

// ETA estimates the remaining duration from the processing rate so far.
// Returns 0 until at least one image has been processed.
func (p *Progress) ETA() time.Duration {
	if p.ImagesProcessed == 0 {
		return 0
	}
	rate := float64(p.ImagesProcessed) / p.Elapsed().Seconds()
	if rate <= 0 {
		return 0
	}
	remaining := float64(p.TotalImages - p.ImagesProcessed)
	return time.Duration(remaining / rate * float64(time.Second))
}

// ProgressRegistry tracks in-flight indexing operations per album key.
// It doubles as the per-album mutual-exclusion gate: starting an
// operation for a key with a running record is rejected, never queued.
// Construct one per process and inject it; there is no global.
type ProgressRegistry struct {
	mu      sync.Mutex
	records map[string]*Progress
}

// NewProgressRegistry creates an empty registry.
func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{records: make(map[string]*Progress)}
}

// Start registers a new operation for an album key. Returns ErrConflict
// if a non-terminal operation already holds the key. A finished record
// for the same key is overwritten.
func (r *ProgressRegistry) Start(albumKey string) (*Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[albumKey]; ok && !existing.Status.terminal() {
		return nil, fmt.Errorf("album %q: %w", albumKey, ErrConflict)
	}
	p := &Progress{
		OperationID: uuid.NewString(),
		AlbumKey:    albumKey,
		Status:      StatusScanning,
		CurrentStep: "starting",
		StartTime:   time.Now(),
	}
	r.records[albumKey] = p
	return p, nil
}

// Update records per-image progress. Unknown keys are ignored.
func (r *ProgressRegistry) Update(albumKey string, processed, total int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[albumKey]
	if !ok || p.Status.terminal() {
		return
	}
	p.ImagesProcessed = processed
	if total > 0 {
		p.TotalImages = total
	}
	if step != "" {
		p.CurrentStep = step
	}
	if p.Status == StatusScanning && total > 0 {
		p.Status = StatusIndexing
	}
}

// SetStatus moves an operation to a new phase.
func (r *ProgressRegistry) SetStatus(albumKey string, status Status, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[albumKey]; ok && !p.Status.terminal() {
		p.Status = status
		if step != "" {
			p.CurrentStep = step
		}
	}
}

// Complete marks an operation as finished.
func (r *ProgressRegistry) Complete(albumKey string, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[albumKey]; ok {
		p.Status = StatusCompleted
		if step != "" {
			p.CurrentStep = step
		}
	}
}

// SetError marks an operation as failed.
func (r *ProgressRegistry) SetError(albumKey, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[albumKey]; ok {
		p.Status = StatusError
		p.ErrorMessage = message
	}
}

// Cancel flags a running operation for cooperative cancellation. The
// worker observes the flag between images; an in-flight embedding call
// is never interrupted.
func (r *ProgressRegistry) Cancel(albumKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[albumKey]
	if !ok || p.Status.terminal() {
		return false
	}
	p.cancelled = true
	return true
}

// Cancelled reports whether a cancellation was requested for the key.
func (r *ProgressRegistry) Cancelled(albumKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[albumKey]
	return ok && p.cancelled
}

// MarkCancelled records that the worker observed the cancellation.
func (r *ProgressRegistry) MarkCancelled(albumKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[albumKey]; ok {
		p.Status = StatusCancelled
		p.CurrentStep = "cancelled"
	}
}

// Get returns a copy of the progress record for a key.
func (r *ProgressRegistry) Get(albumKey string) (Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[albumKey]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// IsRunning reports whether a non-terminal operation holds the key.
func (r *ProgressRegistry) IsRunning(albumKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[albumKey]
	return ok && !p.Status.terminal()
}

// Remove drops the record for a key.
func (r *ProgressRegistry) Remove(albumKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, albumKey)
}
