package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/clipslide/internal/curation"
)

type selectRequest struct {
	TargetCount int    `json:"target_count"`
	Seed        int64  `json:"seed"`
	Method      string `json:"method"` // "fps" (default) or "kmeans"
}

type selectResponse struct {
	Count           int      `json:"count"`
	SelectedIndices []int    `json:"selected_indices"`
	SelectedFiles   []string `json:"selected_files"`
}

// CurationSelect picks a representative subset of an album's images for
// training-set construction, by farthest-point sampling or k-means.
func (a *API) CurationSelect(w http.ResponseWriter, r *http.Request) {
	_, album, ok := a.album(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.TargetCount <= 0 {
		respondError(w, http.StatusBadRequest, "target_count must be positive")
		return
	}
	if req.Seed == 0 {
		req.Seed = 42
	}

	embeddings, filepaths, err := a.svc.Engine(album.Index).Embeddings()
	if err != nil {
		respondEngineError(w, err)
		return
	}

	var indices []int
	if req.Method == "kmeans" {
		indices = curation.SelectKMeans(embeddings, req.TargetCount, req.Seed)
	} else {
		indices = curation.SelectFPS(embeddings, req.TargetCount, req.Seed)
	}

	files := make([]string, len(indices))
	for i, idx := range indices {
		files[i] = filepaths[idx]
	}
	respondJSON(w, http.StatusOK, selectResponse{
		Count:           len(indices),
		SelectedIndices: indices,
		SelectedFiles:   files,
	})
}

type exportRequest struct {
	Filenames    []string `json:"filenames"`
	OutputFolder string   `json:"output_folder"`
}

// CurationExport copies selected files into an output folder with
// collision-safe renaming.
func (a *API) CurationExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.OutputFolder == "" {
		respondError(w, http.StatusBadRequest, "output_folder is required")
		return
	}

	result, err := curation.Export(req.Filenames, req.OutputFolder)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}
