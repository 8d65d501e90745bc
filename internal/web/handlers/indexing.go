package handlers

import (
	"log"
	"net/http"
	"os"
	"time"
)

// indexResultResponse summarizes a synchronous indexing run.
type indexResultResponse struct {
	AlbumKey string   `json:"album_key"`
	Images   int      `json:"images"`
	Removed  int      `json:"removed,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// progressResponse is the wire form of a progress record.
type progressResponse struct {
	AlbumKey           string  `json:"album_key"`
	Status             string  `json:"status"`
	CurrentStep        string  `json:"current_step"`
	ImagesProcessed    int     `json:"images_processed"`
	TotalImages        int     `json:"total_images"`
	ProgressPercentage float64 `json:"progress_percentage"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	EtaSeconds         float64 `json:"eta_seconds,omitempty"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// CreateIndex builds an album index from scratch, synchronously.
func (a *API) CreateIndex(w http.ResponseWriter, r *http.Request) {
	key, album, ok := a.album(w, r)
	if !ok {
		return
	}
	result, err := a.svc.CreateIndex(r.Context(), album.Index, album.ImagePaths, nil)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, indexResultResponse{
		AlbumKey: key,
		Images:   result.Len(),
		Failures: result.Failures,
	})
}

// UpdateIndex incrementally refreshes an existing album index,
// synchronously. Fails with 404 when the index does not exist yet.
func (a *API) UpdateIndex(w http.ResponseWriter, r *http.Request) {
	key, album, ok := a.album(w, r)
	if !ok {
		return
	}
	result, err := a.svc.UpdateIndex(r.Context(), album.Index, album.ImagePaths, nil)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, indexResultResponse{
		AlbumKey: key,
		Images:   result.Len(),
		Removed:  result.Removed,
		Failures: result.Failures,
	})
}

// IndexAsync starts a background create-or-update for an album.
// Responds 409 when an operation is already running for the key.
func (a *API) IndexAsync(w http.ResponseWriter, r *http.Request) {
	key, album, ok := a.album(w, r)
	if !ok {
		return
	}

	// Validate roots up front so an obviously broken album config fails
	// the request, not the background task.
	existing := 0
	for _, root := range album.ImagePaths {
		if _, err := os.Stat(root); err == nil {
			existing++
		}
	}
	if existing == 0 {
		respondError(w, http.StatusBadRequest, "none of the album image paths exist")
		return
	}

	if err := a.svc.IndexAsync(key, album.Index, album.ImagePaths); err != nil {
		respondEngineError(w, err)
		return
	}
	log.Printf("index operation for album %q started in background", sanitizeForLog(key))
	respondJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"album_key": key,
		"message":   "index operation started in background",
	})
}

// IndexProgress reports the current progress of an index operation. An
// album with no operation reports an idle record rather than an error.
func (a *API) IndexProgress(w http.ResponseWriter, r *http.Request) {
	key, _, ok := a.album(w, r)
	if !ok {
		return
	}

	progress, found := a.svc.Registry.Get(key)
	if !found {
		respondJSON(w, http.StatusOK, progressResponse{
			AlbumKey:    key,
			Status:      "idle",
			CurrentStep: "no operation in progress",
		})
		return
	}

	respondJSON(w, http.StatusOK, progressResponse{
		AlbumKey:           key,
		Status:             string(progress.Status),
		CurrentStep:        progress.CurrentStep,
		ImagesProcessed:    progress.ImagesProcessed,
		TotalImages:        progress.TotalImages,
		ProgressPercentage: progress.Percentage(),
		ElapsedSeconds:     progress.Elapsed().Seconds(),
		EtaSeconds:         progress.ETA().Round(time.Second).Seconds(),
		ErrorMessage:       progress.ErrorMessage,
	})
}

// CancelIndex requests cooperative cancellation of a running operation.
func (a *API) CancelIndex(w http.ResponseWriter, r *http.Request) {
	key, _, ok := a.album(w, r)
	if !ok {
		return
	}
	if err := a.svc.Cancel(key); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"album_key": key,
		"message":   "cancellation requested",
	})
}
