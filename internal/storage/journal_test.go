package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_UpsertGet(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	rec := &SyncRecord{Path: "a.md", BlockHash: "h1", RelatedCount: 3, RunID: "run-1"}
	if err := j.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := j.Get(ctx, "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.BlockHash != "h1" || got.RelatedCount != 3 {
		t.Errorf("Get=%+v", got)
	}
	if got.SyncedAt.IsZero() {
		t.Error("SyncedAt not set")
	}

	// Upsert on the same path replaces the row.
	rec2 := &SyncRecord{Path: "a.md", BlockHash: "h2", RelatedCount: 1, RunID: "run-2"}
	if err := j.Upsert(ctx, rec2); err != nil {
		t.Fatal(err)
	}
	got, err = j.Get(ctx, "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.BlockHash != "h2" || got.RunID != "run-2" {
		t.Errorf("upsert did not replace: %+v", got)
	}
	n, err := j.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
}

func TestJournal_GetMissing(t *testing.T) {
	j := newTestJournal(t)
	got, err := j.Get(context.Background(), "missing.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing record, got %+v", got)
	}
}

func TestJournal_DeleteAndLastSyncedAt(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	at, err := j.LastSyncedAt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !at.IsZero() {
		t.Errorf("empty journal LastSyncedAt=%v, want zero", at)
	}

	if err := j.Upsert(ctx, &SyncRecord{Path: "a.md", BlockHash: "h", RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	at, err = j.LastSyncedAt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if at.IsZero() {
		t.Error("LastSyncedAt should be set after upsert")
	}

	if err := j.Delete(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}
	n, _ := j.Count(ctx)
	if n != 0 {
		t.Errorf("Count after delete=%d", n)
	}
}
