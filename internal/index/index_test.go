package index

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kanren/internal/embedfile"
)

func loadOrFatal(t *testing.T, ix *Index, data string) *LoadStats {
	t.Helper()
	stats, err := ix.Load([]byte(data), ModeAuto, nil)
	if err != nil {
		t.Fatal(err)
	}
	return stats
}

func TestLoad_InvalidJSON(t *testing.T) {
	ix := New()
	_, err := ix.Load([]byte("{not json"), ModeAuto, nil)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
	if ix.Loaded() {
		t.Error("index should not be loaded after decode failure")
	}
}

func TestLoad_UnrecognizedFormat(t *testing.T) {
	ix := New()
	_, err := ix.Load([]byte(`{"something":"else"}`), ModeAuto, nil)
	if !errors.Is(err, ErrUnrecognizedFormat) {
		t.Errorf("expected ErrUnrecognizedFormat, got %v", err)
	}
}

func TestLoad_FailedReloadKeepsPreviousIndex(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"a.md":[1,0],"b.md":[0,1]}`)
	if ix.Size() != 2 {
		t.Fatalf("Size=%d", ix.Size())
	}
	if _, err := ix.Load([]byte(`"not an index"`), ModeAuto, nil); err == nil {
		t.Fatal("expected reload failure")
	}
	if !ix.Loaded() || ix.Size() != 2 {
		t.Errorf("failed reload must keep previous index: loaded=%v size=%d", ix.Loaded(), ix.Size())
	}
	if _, err := ix.VectorForFile("a.md"); err != nil {
		t.Errorf("previous entries lost: %v", err)
	}
}

func TestLoad_ManualMode(t *testing.T) {
	ix := New()
	mapping := &embedfile.KeyMapping{PathKey: "doc", VectorKey: "v"}
	stats, err := ix.Load([]byte(`[{"doc":"a.md","v":[1,0]}]`), ModeManual, mapping)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries=%d", stats.Entries)
	}
	// Manual mode falls back to the map parser when the array parser declines.
	if _, err := ix.Load([]byte(`{"x.md":[1,0]}`), ModeManual, mapping); err != nil {
		t.Errorf("manual map fallback failed: %v", err)
	}
}

func TestVectorForFile_FallbackChain(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"Notes/Alpha.md":[1,0],"beta.md":[0,1]}`)

	for _, q := range []string{
		"Notes/Alpha.md", // exact
		`Notes\Alpha.md`, // separator-normalized
		"Notes/Alpha",    // without .md
		"notes/alpha.md", // lowercase
		"notes/alpha",    // lowercase without .md
		"beta",           // bare filename without .md
	} {
		if _, err := ix.VectorForFile(q); err != nil {
			t.Errorf("VectorForFile(%q) failed: %v", q, err)
		}
	}
	if _, err := ix.VectorForFile("gamma.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVectorForFile_Unloaded(t *testing.T) {
	if _, err := New().VectorForFile("a.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on unloaded index, got %v", err)
	}
}

func TestFindNearest_ChunkDedup(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"vectors":[
		{"path":"a.md","embedding":[1,0]},
		{"path":"b.md","embedding":[0.9,0.1]},
		{"path":"a.md#chunk2","embedding":[0.99,0]}
	]}`)
	query, err := ix.VectorForFile("a.md")
	if err != nil {
		t.Fatal(err)
	}
	results := ix.FindNearest(query, SearchOptions{
		K:            5,
		Threshold:    0.5,
		ExcludePaths: []string{"a.md"},
	})
	if len(results) != 1 {
		t.Fatalf("results=%v, want exactly one", results)
	}
	if results[0].Path != "b.md" {
		t.Errorf("path=%q, want b.md", results[0].Path)
	}
}

func TestFindNearest_Properties(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"vectors":[
		{"path":"a.md","embedding":[1,0,0]},
		{"path":"a.md#chunk1","embedding":[0.95,0.05,0]},
		{"path":"b.md","embedding":[0.8,0.2,0]},
		{"path":"c.md","embedding":[0,1,0]},
		{"path":"d.md","embedding":[0.7,0.3,0]}
	]}`)
	results := ix.FindNearest([]float32{1, 0, 0}, SearchOptions{K: 3, Threshold: 0.5})

	if len(results) > 3 {
		t.Fatalf("more than k results: %d", len(results))
	}
	seen := make(map[string]bool)
	for i, r := range results {
		doc := CanonicalDoc(r.Path)
		if seen[doc] {
			t.Errorf("duplicate document %q in results", doc)
		}
		seen[doc] = true
		if r.Score < 0.5 {
			t.Errorf("result below threshold: %v", r)
		}
		if i > 0 && results[i-1].Score < r.Score {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	// a.md appears once with the score of its best chunk.
	if results[0].Path != "a.md" || math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("top result=%v, want a.md with score 1", results[0])
	}
}

func TestFindNearest_ExcludeFolders(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"Archive/old.md":[1,0],"archive.md":[0.99,0.01],"keep.md":[0.9,0.1]}`)
	results := ix.FindNearest([]float32{1, 0}, SearchOptions{
		K:              10,
		Threshold:      0,
		ExcludeFolders: []string{"archive"},
	})
	for _, r := range results {
		if CanonicalDoc(r.Path) == "archive/old.md" {
			t.Errorf("folder exclusion missed %q", r.Path)
		}
	}
	// Prefix match requires the separator: archive.md is not under archive/.
	found := false
	for _, r := range results {
		if r.Path == "archive.md" {
			found = true
		}
	}
	if !found {
		t.Error("archive.md wrongly excluded by folder prefix")
	}
}

func TestFindNearest_EdgeCases(t *testing.T) {
	ix := New()
	if got := ix.FindNearest([]float32{1, 0}, SearchOptions{K: 5}); got != nil {
		t.Errorf("unloaded index should return nil, got %v", got)
	}
	loadOrFatal(t, ix, `{"a.md":[1,0]}`)
	if got := ix.FindNearest([]float32{1, 0}, SearchOptions{K: 0, Threshold: 0}); got != nil {
		t.Errorf("k=0 should return nil, got %v", got)
	}
	// Threshold above 1 filters everything.
	if got := ix.FindNearest([]float32{1, 0}, SearchOptions{K: 5, Threshold: 1.5}); len(got) != 0 {
		t.Errorf("threshold 1.5 should yield nothing, got %v", got)
	}
}

func TestLoad_VariantCollisionLastWins(t *testing.T) {
	ix := New()
	loadOrFatal(t, ix, `{"vectors":[
		{"path":"Note.md","embedding":[1,0]},
		{"path":"note.md","embedding":[0,1]}
	]}`)
	vec, err := ix.VectorForFile("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if vec[1] != 1 {
		t.Errorf("collision should resolve to the later entry, got %v", vec)
	}
}
