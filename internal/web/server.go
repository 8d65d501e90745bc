// Package web exposes the index engine over HTTP. Endpoints are thin:
// error translation and parameter parsing only, all semantics live in
// the index engine.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/clipslide/internal/config"
	"github.com/kozaktomas/clipslide/internal/index"
	"github.com/kozaktomas/clipslide/internal/web/handlers"
)

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server around the index service.
func NewServer(cfg *config.Config, svc *index.Service, host string, port int) *Server {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	api := handlers.NewAPI(cfg, svc)
	setupRoutes(r, api)

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      r,
			ReadTimeout:  5 * time.Minute, // image uploads
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func setupRoutes(r *chi.Mux, api *handlers.API) {
	r.Get("/healthz", handlers.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/albums/{album}/index", func(r chi.Router) {
			r.Post("/", api.CreateIndex)
			r.Post("/update", api.UpdateIndex)
			r.Post("/async", api.IndexAsync)
			r.Get("/progress", api.IndexProgress)
			r.Delete("/cancel", api.CancelIndex)
		})

		r.Post("/search/{album}/image", api.SearchByImage)
		r.Post("/search/{album}/text", api.SearchByText)

		r.Get("/slides/{album}/next", api.NextSlide)
		r.Get("/slides/{album}", api.GetSlide)
		r.Delete("/images/{album}", api.DeleteImage)

		r.Get("/duplicates/{album}", api.DuplicateClusters)

		r.Post("/curation/{album}/select", api.CurationSelect)
		r.Post("/curation/export", api.CurationExport)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
