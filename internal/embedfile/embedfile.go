// Package embedfile parses heterogeneous embedding-file shapes into a uniform
// list of (path, vector) entries. Parsers sniff decoded JSON structurally and
// decline shapes they do not recognize; broken records inside a recognized
// shape are skipped and counted, never fatal.
package embedfile

import (
	"sort"
	"strings"
)

// Entry is one parsed embedding record.
type Entry struct {
	Path   string
	Vector []float32
}

// KeyMapping pins the record-array parser to exact field names, disabling
// candidate-key probing.
type KeyMapping struct {
	PathKey   string
	VectorKey string
}

// Result holds the entries extracted from one file plus a per-record error
// count and a human-readable format name for diagnostics.
type Result struct {
	Entries []Entry
	Skipped int
	Format  string
}

// Candidate field names probed in order; first present key wins.
var (
	pathKeys   = []string{"path", "file", "filepath", "filePath", "notePath", "note_path", "name"}
	vectorKeys = []string{"embedding", "vector", "values", "embeddings", "vec", "emb"}
)

// ParseAuto tries the known shapes in priority order: wrapped-vectors object,
// array of records, path-keyed map. Returns false if none matched.
func ParseAuto(doc any) (*Result, bool) {
	if res, ok := parseWrapped(doc); ok {
		return res, true
	}
	if res, ok := parseRecords(doc, nil); ok {
		return res, true
	}
	return parseMap(doc)
}

// ParseManual attempts the record-array parser with an exact key mapping and
// falls back to the path-keyed map parser.
func ParseManual(doc any, mapping KeyMapping) (*Result, bool) {
	if res, ok := parseRecords(doc, &mapping); ok {
		return res, true
	}
	return parseMap(doc)
}

// parseWrapped recognizes {"vectors": [{"path": ..., "embedding": [...]}, ...]}.
// An empty vectors array is a valid, empty result. A non-empty array counts as
// recognized only when the first element carries both field names and at least
// one element parses.
func parseWrapped(doc any) (*Result, bool) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := obj["vectors"]
	if !ok {
		return nil, false
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	res := &Result{Format: "wrapped vectors"}
	if len(arr) == 0 {
		return res, true
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return nil, false
	}
	if _, ok := first["path"]; !ok {
		return nil, false
	}
	if _, ok := first["embedding"]; !ok {
		return nil, false
	}
	for _, el := range arr {
		rec, ok := el.(map[string]any)
		if !ok {
			res.Skipped++
			continue
		}
		path, ok := rec["path"].(string)
		if !ok || path == "" {
			res.Skipped++
			continue
		}
		vec, ok := asVector(rec["embedding"])
		if !ok {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, Entry{Path: NormalizePath(path), Vector: vec})
	}
	if len(res.Entries) == 0 {
		return nil, false
	}
	return res, true
}

// parseRecords recognizes a top-level array whose first element is an object.
// Field names come from mapping when non-nil, otherwise from candidate probing.
func parseRecords(doc any, mapping *KeyMapping) (*Result, bool) {
	arr, ok := doc.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	if _, ok := arr[0].(map[string]any); !ok {
		return nil, false
	}
	res := &Result{Format: "record array"}
	for _, el := range arr {
		rec, ok := el.(map[string]any)
		if !ok {
			res.Skipped++
			continue
		}
		path, ok := extractPath(rec, mapping)
		if !ok {
			res.Skipped++
			continue
		}
		vec, ok := extractVector(rec, mapping)
		if !ok {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, Entry{Path: NormalizePath(path), Vector: vec})
	}
	if len(res.Entries) == 0 {
		return nil, false
	}
	return res, true
}

// parseMap recognizes {"some/path": [0.1, 0.2, ...], ...}. Keys are walked in
// sorted order so entry order and skip counts are deterministic.
func parseMap(doc any) (*Result, bool) {
	obj, ok := doc.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := &Result{Format: "path-keyed map"}
	for _, k := range keys {
		vec, ok := asVector(obj[k])
		if !ok {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, Entry{Path: NormalizePath(k), Vector: vec})
	}
	if len(res.Entries) == 0 {
		return nil, false
	}
	return res, true
}

func extractPath(rec map[string]any, mapping *KeyMapping) (string, bool) {
	if mapping != nil && mapping.PathKey != "" {
		s, ok := rec[mapping.PathKey].(string)
		return s, ok && s != ""
	}
	for _, k := range pathKeys {
		if v, present := rec[k]; present {
			s, ok := v.(string)
			return s, ok && s != ""
		}
	}
	return "", false
}

func extractVector(rec map[string]any, mapping *KeyMapping) ([]float32, bool) {
	if mapping != nil && mapping.VectorKey != "" {
		return asVector(rec[mapping.VectorKey])
	}
	for _, k := range vectorKeys {
		if v, present := rec[k]; present {
			return asVector(v)
		}
	}
	return nil, false
}

// asVector converts a decoded JSON array of numbers to []float32.
func asVector(v any) ([]float32, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	out := make([]float32, len(arr))
	for i, x := range arr {
		f, ok := x.(float64)
		if !ok {
			return nil, false
		}
		out[i] = float32(f)
	}
	return out, true
}

// NormalizePath converts backslashes to forward slashes and strips leading and
// trailing slashes, yielding the canonical record path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.Trim(p, "/")
}
