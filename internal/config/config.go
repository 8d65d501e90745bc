// Package config resolves albums to snapshot paths and image roots from
// a YAML file, with environment-variable overrides for service
// settings. The index engine never discovers albums on its own.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrAlbumNotFound is returned when an album key is not configured.
var ErrAlbumNotFound = errors.New("album not found")

const defaultConfigPath = "albums.yaml"

// AlbumConfig describes one album: where its snapshot lives and which
// directories it indexes.
type AlbumConfig struct {
	Index      string   `yaml:"index"`
	ImagePaths []string `yaml:"image_paths"`
}

// EmbeddingConfig configures the CLIP embedding service client.
type EmbeddingConfig struct {
	URL   string `yaml:"url"`   // defaults to http://localhost:8000
	Model string `yaml:"model"` // defaults to ViT-B/32
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config is the application configuration.
type Config struct {
	Albums       map[string]AlbumConfig `yaml:"albums"`
	Embedding    EmbeddingConfig        `yaml:"embedding"`
	Server       ServerConfig           `yaml:"server"`
	MinImageSize int64                  `yaml:"min_image_size"` // bytes, strictly-greater-than filter
}

// Load reads the album config file. Path resolution: explicit argument,
// then CLIPSLIDE_CONFIG, then ./albums.yaml. A missing file yields an
// empty album set rather than an error so that service-only settings
// still work. Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CLIPSLIDE_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg := &Config{
		Albums: map[string]AlbumConfig{},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	case os.IsNotExist(err):
		// No album file: CLI commands that take explicit paths still work.
	default:
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	if v := os.Getenv("EMBEDDING_URL"); v != "" {
		cfg.Embedding.URL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CLIPSLIDE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	cfg.Server.Port = envInt("CLIPSLIDE_PORT", cfg.Server.Port)
	cfg.MinImageSize = int64(envInt("MIN_IMAGE_SIZE", int(cfg.MinImageSize)))

	return cfg, nil
}

// Album resolves an album key to its configuration.
func (c *Config) Album(key string) (AlbumConfig, error) {
	album, ok := c.Albums[key]
	if !ok {
		return AlbumConfig{}, fmt.Errorf("album %q: %w", key, ErrAlbumNotFound)
	}
	return album, nil
}

// envInt reads an environment variable and parses it as a positive
// integer, falling back to def on absence or parse failure.
func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
