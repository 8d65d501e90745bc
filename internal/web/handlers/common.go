package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/clipslide/internal/config"
	"github.com/kozaktomas/clipslide/internal/index"
)

// errInvalidRequestBody is a shared error message for invalid JSON
// request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log
// injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError translates engine errors to HTTP status codes:
// not-found conditions map to 404, operation conflicts to 409,
// everything else to 500.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, index.ErrNotFound), errors.Is(err, config.ErrAlbumNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, index.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
