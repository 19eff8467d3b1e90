// Package vault provides read/write access to the markdown notes under a
// single root directory. Notes are addressed by slash-separated paths
// relative to the root.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Vault is a markdown vault rooted at a directory.
type Vault struct {
	root string
}

// New returns a vault for the given root directory.
func New(root string) *Vault {
	return &Vault{root: root}
}

// Root returns the vault root directory.
func (v *Vault) Root() string { return v.root }

// List walks the vault and returns the relative paths of all markdown notes,
// slash-separated. Hidden directories (".obsidian", ".git", ...) are skipped.
func (v *Vault) List() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		notes = append(notes, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vault: %w", err)
	}
	return notes, nil
}

// ReadText returns the content of a note.
func (v *Vault) ReadText(rel string) (string, error) {
	data, err := os.ReadFile(v.abs(rel))
	if err != nil {
		return "", fmt.Errorf("failed to read note: %w", err)
	}
	return string(data), nil
}

// WriteText replaces the content of a note, creating parent directories as
// needed.
func (v *Vault) WriteText(rel string, text string) error {
	path := v.abs(rel)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create note directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}
	return nil
}

// Exists reports whether a note exists.
func (v *Vault) Exists(rel string) bool {
	info, err := os.Stat(v.abs(rel))
	return err == nil && !info.IsDir()
}

// ModifiedAt returns the note's modification time, or the zero time when
// unknown.
func (v *Vault) ModifiedAt(rel string) time.Time {
	info, err := os.Stat(v.abs(rel))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Rel converts an absolute path inside the vault to its note path. The second
// return is false for paths outside the root.
func (v *Vault) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (v *Vault) abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}
