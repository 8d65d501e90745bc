package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/clipslide/internal/config"
	"github.com/kozaktomas/clipslide/internal/index"
)

// API holds the dependencies shared by all handlers.
type API struct {
	cfg *config.Config
	svc *index.Service
}

// NewAPI creates the handler set around an index service.
func NewAPI(cfg *config.Config, svc *index.Service) *API {
	return &API{cfg: cfg, svc: svc}
}

// album resolves the {album} URL parameter. On failure it writes the
// error response and returns ok=false.
func (a *API) album(w http.ResponseWriter, r *http.Request) (key string, album config.AlbumConfig, ok bool) {
	key = chi.URLParam(r, "album")
	album, err := a.cfg.Album(key)
	if err != nil {
		respondEngineError(w, err)
		return key, album, false
	}
	return key, album, true
}
