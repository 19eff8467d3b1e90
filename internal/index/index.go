// Package index holds the in-memory embedding index: load from raw embedding
// file bytes, path-variant vector lookup, and exhaustive thresholded top-k
// nearest-neighbor search with per-document deduplication.
//
// The index carries no internal lock. Load discards and rebuilds the lookup
// structures, so callers must serialize Load against concurrent searches.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kanren/internal/embedfile"
	"github.com/hyperjump/kanren/internal/vecmath"
)

var (
	// ErrInvalidJSON reports undecodable embedding file bytes.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrUnrecognizedFormat reports that no parser accepted the decoded data.
	ErrUnrecognizedFormat = errors.New("unrecognized embedding format")
	// ErrNotFound reports that a query path has no resolvable vector.
	ErrNotFound = errors.New("no vector for path")
)

// Mode selects how Load interprets the embedding file.
type Mode string

const (
	// ModeAuto sniffs the known shapes in priority order.
	ModeAuto Mode = "auto"
	// ModeManual uses a caller-supplied field mapping for record arrays.
	ModeManual Mode = "manual"
)

// Index is the embedding index. The zero value is unusable; use New.
type Index struct {
	entries []entry
	lookup  map[string][]float32
	format  string
	loaded  bool
}

// entry pairs a canonical record path with its unit-normalized vector.
type entry struct {
	path   string
	vector []float32
}

// LoadStats summarizes a successful Load for diagnostics.
type LoadStats struct {
	Entries int
	Skipped int
	Format  string
}

// Result is one search hit. Score is cosine similarity in [-1, 1].
type Result struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// SearchOptions configures FindNearest.
type SearchOptions struct {
	K              int
	Threshold      float64
	ExcludePaths   []string
	ExcludeFolders []string
}

// New returns an empty, unloaded index.
func New() *Index {
	return &Index{}
}

// Load decodes data, parses it per mode, and rebuilds the index. The new entry
// list and variant lookup are built off to the side and swapped in only on
// success, so a failed reload leaves the previously loaded index intact.
// mapping is only consulted in ModeManual.
func (ix *Index) Load(data []byte, mode Mode, mapping *embedfile.KeyMapping) (*LoadStats, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	var res *embedfile.Result
	var ok bool
	if mode == ModeManual && mapping != nil {
		res, ok = embedfile.ParseManual(doc, *mapping)
	} else {
		res, ok = embedfile.ParseAuto(doc)
	}
	if !ok {
		return nil, ErrUnrecognizedFormat
	}

	entries := make([]entry, 0, len(res.Entries))
	lookup := make(map[string][]float32, len(res.Entries)*4)
	for _, e := range res.Entries {
		vec := vecmath.Normalize(e.Vector)
		entries = append(entries, entry{path: e.Path, vector: vec})
		register(lookup, e.Path, vec)
	}
	ix.entries = entries
	ix.lookup = lookup
	ix.format = res.Format
	ix.loaded = true
	return &LoadStats{Entries: len(entries), Skipped: res.Skipped, Format: res.Format}, nil
}

// register maps every variant of path to the same normalized vector instance.
// Colliding variant keys from later entries overwrite earlier ones; last write
// wins by parse order.
func register(lookup map[string][]float32, path string, vec []float32) {
	for _, k := range pathVariants(path) {
		lookup[k] = vec
	}
}

// pathVariants returns the lookup keys derived from a canonical path: the path
// itself, the path without a trailing ".md", and the lowercase forms of both.
func pathVariants(path string) []string {
	variants := []string{path}
	if trimmed := strings.TrimSuffix(path, ".md"); trimmed != path {
		variants = append(variants, trimmed)
	}
	n := len(variants)
	for _, v := range variants[:n] {
		if lower := strings.ToLower(v); lower != v {
			variants = append(variants, lower)
		}
	}
	return variants
}

// Clear discards all loaded entries, returning the index to its unloaded state.
func (ix *Index) Clear() {
	ix.entries = nil
	ix.lookup = nil
	ix.format = ""
	ix.loaded = false
}

// Loaded reports whether a load has completed successfully.
func (ix *Index) Loaded() bool { return ix.loaded }

// Size returns the number of indexed entries.
func (ix *Index) Size() int { return len(ix.entries) }

// Format returns the format name of the last loaded file, or "".
func (ix *Index) Format() string { return ix.format }

// VectorForFile resolves the normalized vector for a document path, trying
// progressively looser variants: exact, separator-normalized, without ".md",
// lowercase, lowercase without ".md", bare filename, bare filename without
// ".md". The layered fallback absorbs disagreements in case, separator, and
// extension between the caller's path convention and the embedding file's.
func (ix *Index) VectorForFile(path string) ([]float32, error) {
	if !ix.loaded {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	norm := embedfile.NormalizePath(path)
	lower := strings.ToLower(norm)
	base := lastSegment(norm)
	candidates := []string{
		path,
		norm,
		strings.TrimSuffix(norm, ".md"),
		lower,
		strings.TrimSuffix(lower, ".md"),
		base,
		strings.TrimSuffix(base, ".md"),
	}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if vec, ok := ix.lookup[c]; ok {
			return vec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// FindNearest scans every indexed entry once, filters by exclusions and
// threshold, keeps the best-scoring entry per canonical document (a document
// embedded as multiple chunks must never yield two results), and returns the
// top k by score descending. An unloaded index or k <= 0 yields nil.
func (ix *Index) FindNearest(query []float32, opts SearchOptions) []Result {
	if !ix.loaded || opts.K <= 0 || len(ix.entries) == 0 {
		return nil
	}
	q := vecmath.Normalize(query)

	excluded := make(map[string]bool, len(opts.ExcludePaths))
	for _, p := range opts.ExcludePaths {
		excluded[CanonicalDoc(p)] = true
	}
	folders := make([]string, 0, len(opts.ExcludeFolders))
	for _, f := range opts.ExcludeFolders {
		if cf := CanonicalDoc(f); cf != "" {
			folders = append(folders, cf)
		}
	}

	best := make(map[string]Result)
	for _, e := range ix.entries {
		doc := CanonicalDoc(e.path)
		if excluded[doc] || underAny(doc, folders) {
			continue
		}
		score := vecmath.DotNormalized(q, e.vector)
		if score < opts.Threshold {
			continue
		}
		if cur, ok := best[doc]; !ok || score > cur.Score {
			best[doc] = Result{Path: e.path, Score: score}
		}
	}

	results := make([]Result, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.K {
		results = results[:opts.K]
	}
	return results
}

// CanonicalDoc maps a record path to its canonical document identity: chunk
// fragment stripped, separators normalized, lowercased. Used uniformly for
// exclusion matching and result deduplication.
func CanonicalDoc(path string) string {
	p := embedfile.NormalizePath(path)
	if i := strings.Index(p, "#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(p)
}

// underAny reports whether doc equals a folder or lies under folder + "/".
func underAny(doc string, folders []string) bool {
	for _, f := range folders {
		if doc == f || strings.HasPrefix(doc, f+"/") {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
