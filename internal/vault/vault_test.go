package vault

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.md":                "alpha",
		"sub/b.md":            "beta",
		"sub/deep/c.MD":       "gamma",
		"ignore.txt":          "not a note",
		".obsidian/plugin.md": "hidden",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return New(root)
}

func TestList(t *testing.T) {
	v := newTestVault(t)
	notes, err := v.List()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(notes)
	want := []string{"a.md", "sub/b.md", "sub/deep/c.MD"}
	if len(notes) != len(want) {
		t.Fatalf("notes=%v, want %v", notes, want)
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("notes[%d]=%q, want %q", i, notes[i], want[i])
		}
	}
}

func TestReadWrite(t *testing.T) {
	v := newTestVault(t)
	got, err := v.ReadText("sub/b.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "beta" {
		t.Errorf("ReadText=%q", got)
	}
	if err := v.WriteText("new/dir/d.md", "delta"); err != nil {
		t.Fatal(err)
	}
	got, err = v.ReadText("new/dir/d.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "delta" {
		t.Errorf("round trip=%q", got)
	}
}

func TestExistsAndModifiedAt(t *testing.T) {
	v := newTestVault(t)
	if !v.Exists("a.md") {
		t.Error("a.md should exist")
	}
	if v.Exists("missing.md") {
		t.Error("missing.md should not exist")
	}
	if v.ModifiedAt("a.md").IsZero() {
		t.Error("ModifiedAt should be non-zero for existing note")
	}
	if !v.ModifiedAt("missing.md").IsZero() {
		t.Error("ModifiedAt should be zero for missing note")
	}
}

func TestRel(t *testing.T) {
	v := newTestVault(t)
	rel, ok := v.Rel(filepath.Join(v.Root(), "sub", "b.md"))
	if !ok || rel != "sub/b.md" {
		t.Errorf("Rel=%q ok=%v", rel, ok)
	}
	if _, ok := v.Rel(filepath.Join(v.Root(), "..", "outside.md")); ok {
		t.Error("path outside root should not resolve")
	}
}
