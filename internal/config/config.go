// Package config provides configuration loading and structs for kanren.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Vault      VaultConfig      `yaml:"vault"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Related    RelatedConfig    `yaml:"related"`
	Storage    StorageConfig    `yaml:"storage"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// VaultConfig points at the markdown vault root.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingsConfig describes the pre-computed embedding file and how to
// parse it. Mode is "auto" (shape sniffing) or "manual"; in manual mode
// PathKey and VectorKey pin the record fields exactly.
type EmbeddingsConfig struct {
	Path      string `yaml:"path"`
	Mode      string `yaml:"mode"`
	PathKey   string `yaml:"path_key"`
	VectorKey string `yaml:"vector_key"`
}

// RelatedConfig holds search and block-rendering settings.
type RelatedConfig struct {
	Limit          int      `yaml:"limit"`
	Threshold      *float64 `yaml:"threshold"`
	Heading        string   `yaml:"heading"`
	ShowScores     bool     `yaml:"show_scores"`
	UsePathLinks   *bool    `yaml:"use_path_links"`
	ExcludePaths   []string `yaml:"exclude_paths"`
	ExcludeFolders []string `yaml:"exclude_folders"`
}

// ThresholdOrDefault returns the minimum similarity score; defaults to 0.65
// when unset. A pointer so an explicit `threshold: 0` survives defaulting.
func (r *RelatedConfig) ThresholdOrDefault() float64 {
	if r.Threshold != nil {
		return *r.Threshold
	}
	return 0.65
}

// UsePathLinksOrDefault returns whether links carry the full path; defaults
// to true when unset.
func (r *RelatedConfig) UsePathLinksOrDefault() bool {
	if r.UsePathLinks != nil {
		return *r.UsePathLinks
	}
	return true
}

// StorageConfig holds the sync-journal database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds vault/embedding watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Vault.Path = expandPath(cfg.Vault.Path, configDir)
	cfg.Embeddings.Path = expandPath(cfg.Embeddings.Path, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
