package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/clipslide/internal/clip"
	"github.com/kozaktomas/clipslide/internal/config"
	"github.com/kozaktomas/clipslide/internal/index"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "clipslide",
	Short: "CLIP-based photo indexing, search and slideshows",
	Long: `Clipslide indexes photo albums with CLIP embeddings and serves
similarity search, text search, slideshow browsing, duplicate detection
and dataset-curation tools over a CLI and an HTTP API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the albums config file (default albums.yaml)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the album config honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newService builds the index service from the configuration.
func newService(cfg *config.Config) *index.Service {
	embedder := clip.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)
	return index.NewService(embedder, cfg.MinImageSize)
}

// resolveAlbum returns the snapshot path and image roots for an album key.
func resolveAlbum(cfg *config.Config, key string) (string, []string, error) {
	album, err := cfg.Album(key)
	if err != nil {
		return "", nil, err
	}
	return album.Index, album.ImagePaths, nil
}
