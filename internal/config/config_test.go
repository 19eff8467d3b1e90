package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
debug: true
vault:
  path: ./vault
embeddings:
  path: ./embeddings.json
  mode: manual
  path_key: id
  vector_key: emb
related:
  limit: 8
  threshold: 0.7
  show_scores: true
  use_path_links: false
  exclude_folders:
    - templates
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Vault.Path != filepath.Join(dir, "vault") {
		t.Errorf("vault path not expanded: %q", cfg.Vault.Path)
	}
	if cfg.Embeddings.Mode != "manual" || cfg.Embeddings.PathKey != "id" {
		t.Errorf("embeddings config: %+v", cfg.Embeddings)
	}
	if cfg.Related.Limit != 8 || cfg.Related.ThresholdOrDefault() != 0.7 {
		t.Errorf("related config: %+v", cfg.Related)
	}
	if cfg.Related.UsePathLinksOrDefault() {
		t.Error("use_path_links false not honored")
	}
	if len(cfg.Related.ExcludeFolders) != 1 || cfg.Related.ExcludeFolders[0] != "templates" {
		t.Errorf("exclude folders: %v", cfg.Related.ExcludeFolders)
	}
}

func TestLoad_ZeroThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "related:\n  threshold: 0\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Related.ThresholdOrDefault(); got != 0 {
		t.Errorf("explicit zero threshold overwritten: got %v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Embeddings.Mode != "auto" {
		t.Errorf("mode default: %q", cfg.Embeddings.Mode)
	}
	if cfg.Related.Limit != 5 || cfg.Related.ThresholdOrDefault() != 0.65 {
		t.Errorf("related defaults: %+v", cfg.Related)
	}
	if cfg.Related.Heading != "## Related Notes" {
		t.Errorf("heading default: %q", cfg.Related.Heading)
	}
	if !cfg.Related.UsePathLinksOrDefault() {
		t.Error("use_path_links should default to true")
	}
	if cfg.Watch.DebounceMs != 400 {
		t.Errorf("debounce default: %d", cfg.Watch.DebounceMs)
	}
}
