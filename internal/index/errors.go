package index

import "errors"

var (
	// ErrNotFound is returned when a snapshot file or an indexed image
	// does not exist. Callers must treat this as a checked branch, never
	// substitute a default.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a background operation is already
	// running for an album key. Operations are never queued.
	ErrConflict = errors.New("operation already running")

	// ErrCorrupt indicates the four parallel arrays of a snapshot have
	// mismatched lengths. The snapshot is unusable; never truncate.
	ErrCorrupt = errors.New("snapshot arrays misaligned")
)
