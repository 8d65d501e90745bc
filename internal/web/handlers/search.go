package handlers

import (
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/kozaktomas/clipslide/internal/index"
	"github.com/kozaktomas/clipslide/internal/metadata"
)

// maxUploadSize bounds query-image uploads.
const maxUploadSize = 32 << 20 // 32 MiB

type searchResponse struct {
	Results []index.Match `json:"results"`
}

// SearchByImage finds images similar to an uploaded query image.
// Multipart form: file (required), top_k, min_score.
func (a *API) SearchByImage(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	topK := formInt(r, "top_k", index.DefaultTopK)
	minScore := formFloat(r, "min_score", -1)

	matches, err := a.svc.Engine(album.Index).SearchByImage(r.Context(), data, topK, minScore)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, searchResponse{Results: matches})
}

// SearchByText finds images matching a natural-language query.
// Form fields: query (required), top_k, min_score.
func (a *API) SearchByText(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	query := r.FormValue("query")
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query field")
		return
	}

	topK := formInt(r, "top_k", index.DefaultTopK)
	minScore := formFloat(r, "min_score", -1)

	matches, err := a.svc.Engine(album.Index).SearchByText(r.Context(), query, topK, minScore)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, searchResponse{Results: matches})
}

// NextSlide returns the next image in modification-time order, or a
// random one with ?random=true. Query params: current, random.
func (a *API) NextSlide(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}
	engine := a.svc.Engine(album.Index)

	var rec index.Record
	var err error
	if r.URL.Query().Get("random") == "true" {
		rec, err = engine.Random()
	} else {
		rec, err = engine.Next(r.URL.Query().Get("current"))
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metadata.FormatSlide(rec.Filepath, rec.Metadata))
}

// GetSlide returns the formatted record for an exact filepath.
// Query param: path.
func (a *API) GetSlide(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "missing path parameter")
		return
	}
	rec, err := a.svc.Engine(album.Index).Get(path)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metadata.FormatSlide(rec.Filepath, rec.Metadata))
}

// DeleteImage removes an image file and its index entry. Query param:
// path. The index entry goes first so a stale view can never resurrect
// a deleted file.
func (a *API) DeleteImage(w http.ResponseWriter, r *http.Request) {
	key, album, ok := a.album(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "missing path parameter")
		return
	}

	if err := a.svc.Engine(album.Index).Remove(path); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		respondError(w, http.StatusInternalServerError, "failed to delete file: "+err.Error())
		return
	}
	log.Printf("deleted %s from album %q", sanitizeForLog(path), sanitizeForLog(key))
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DuplicateClusters reports groups of near-identical images.
// Query param: threshold.
func (a *API) DuplicateClusters(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}
	threshold := queryFloat(r, "threshold", index.DefaultDuplicateThreshold)
	clusters, err := a.svc.Engine(album.Index).FindDuplicateClusters(threshold)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

func formInt(r *http.Request, name string, def int) int {
	v := r.FormValue(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func formFloat(r *http.Request, name string, def float64) float64 {
	v := r.FormValue(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
