// Package storage provides the SQLite-backed sync journal: one row per note
// recording what the last sync wrote, so unchanged notes can be skipped and
// status can report counts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SyncRecord is the journal row for one note.
type SyncRecord struct {
	Path         string
	BlockHash    string
	RelatedCount int
	RunID        string
	SyncedAt     time.Time
}

// Journal is the SQLite sync journal.
type Journal struct {
	db *sql.DB
}

// NewJournal opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func NewJournal(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS note_sync (
		path TEXT PRIMARY KEY,
		block_hash TEXT NOT NULL,
		related_count INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		synced_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_note_sync_run_id ON note_sync(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or replaces the sync record for rec.Path.
func (j *Journal) Upsert(ctx context.Context, rec *SyncRecord) error {
	rec.SyncedAt = time.Now()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO note_sync (path, block_hash, related_count, run_id, synced_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   block_hash = excluded.block_hash,
		   related_count = excluded.related_count,
		   run_id = excluded.run_id,
		   synced_at = excluded.synced_at`,
		rec.Path, rec.BlockHash, rec.RelatedCount, rec.RunID, rec.SyncedAt,
	)
	return err
}

// Get returns the sync record for a note path, or nil when none exists.
func (j *Journal) Get(ctx context.Context, path string) (*SyncRecord, error) {
	var rec SyncRecord
	err := j.db.QueryRowContext(ctx,
		`SELECT path, block_hash, related_count, run_id, synced_at
		 FROM note_sync WHERE path = ?`, path,
	).Scan(&rec.Path, &rec.BlockHash, &rec.RelatedCount, &rec.RunID, &rec.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the sync record for a note path.
func (j *Journal) Delete(ctx context.Context, path string) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM note_sync WHERE path = ?`, path)
	return err
}

// Count returns the number of journaled notes.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_sync`).Scan(&n)
	return n, err
}

// LastSyncedAt returns the most recent sync time across all notes, or the
// zero time when the journal is empty.
func (j *Journal) LastSyncedAt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := j.db.QueryRowContext(ctx,
		`SELECT synced_at FROM note_sync ORDER BY synced_at DESC LIMIT 1`,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DiskUsageBytes returns the size in bytes of the journal files at dbPath.
// Missing paths contribute 0.
func DiskUsageBytes(dbPath string) (int64, error) {
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
