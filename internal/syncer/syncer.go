// Package syncer orchestrates the related-notes pipeline: it keeps the
// embedding index fresh against the embeddings file, computes each note's
// neighbors, and keeps the managed block inside each note in sync.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/block"
	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/embedfile"
	"github.com/hyperjump/kanren/internal/index"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/vault"
)

// Outcome classifies what SyncNote did to a note.
type Outcome string

const (
	// OutcomeSynced means the note's block was written or rewritten.
	OutcomeSynced Outcome = "synced"
	// OutcomeUnchanged means the computed document was already in place.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSkipped means the note has no vector in the embeddings file.
	OutcomeSkipped Outcome = "skipped"
)

// Summary aggregates one SyncAll run.
type Summary struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Synced    int    `json:"synced"`
	Unchanged int    `json:"unchanged"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Syncer wires the vault, the embedding index, and the sync journal. Safe
// for concurrent use: mu serializes index reloads against searches, since
// the index itself carries no lock.
type Syncer struct {
	vault   *vault.Vault
	cfg     *config.Config
	journal *storage.Journal // optional
	logger  *zap.Logger      // optional

	mu       sync.RWMutex
	index    *index.Index
	loadedAt time.Time // embeddings file mtime at last successful load
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets a logger for debug output (reloads, per-note outcomes).
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithJournal sets the sync journal; without one, no records are kept.
func WithJournal(j *storage.Journal) Option {
	return func(s *Syncer) { s.journal = j }
}

// New creates a syncer over the given vault and index.
func New(v *vault.Vault, ix *index.Index, cfg *config.Config, opts ...Option) *Syncer {
	s := &Syncer{vault: v, index: ix, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexStats is a point-in-time snapshot of the embedding index, for
// status reporting.
type IndexStats struct {
	Loaded bool
	Size   int
	Format string
}

// IndexStats reports the loaded state of the embedding index.
func (s *Syncer) IndexStats() IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IndexStats{
		Loaded: s.index.Loaded(),
		Size:   s.index.Size(),
		Format: s.index.Format(),
	}
}

// Vault exposes the underlying vault.
func (s *Syncer) Vault() *vault.Vault { return s.vault }

// EnsureLoaded loads the embeddings file on first use and reloads it when its
// modification time is newer than the last load. A failed reload returns an
// error and leaves the previously loaded index intact.
func (s *Syncer) EnsureLoaded(ctx context.Context) error {
	info, err := os.Stat(s.cfg.Embeddings.Path)
	if err != nil {
		return fmt.Errorf("failed to stat embeddings file: %w", err)
	}
	s.mu.RLock()
	fresh := s.index.Loaded() && !info.ModTime().After(s.loadedAt)
	s.mu.RUnlock()
	if fresh {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have reloaded while we waited for the lock.
	if s.index.Loaded() && !info.ModTime().After(s.loadedAt) {
		return nil
	}
	data, err := os.ReadFile(s.cfg.Embeddings.Path)
	if err != nil {
		return fmt.Errorf("failed to read embeddings file: %w", err)
	}
	mode := index.ModeAuto
	var mapping *embedfile.KeyMapping
	if s.cfg.Embeddings.Mode == "manual" {
		mode = index.ModeManual
		mapping = &embedfile.KeyMapping{
			PathKey:   s.cfg.Embeddings.PathKey,
			VectorKey: s.cfg.Embeddings.VectorKey,
		}
	}
	stats, err := s.index.Load(data, mode, mapping)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	s.loadedAt = info.ModTime()
	if s.logger != nil {
		s.logger.Info("embedding index loaded",
			zap.String("format", stats.Format),
			zap.Int("entries", stats.Entries),
			zap.Int("skipped_records", stats.Skipped),
		)
	}
	return nil
}

// Related returns the nearest neighbors of a note, excluding the note itself
// and the configured paths and folders. index.ErrNotFound means the note has
// no vector; callers should report and skip rather than abort.
func (s *Syncer) Related(ctx context.Context, notePath string) ([]index.Result, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, err := s.index.VectorForFile(notePath)
	if err != nil {
		return nil, err
	}
	return s.index.FindNearest(vec, s.searchOptions(notePath)), nil
}

// SyncNote recomputes a note's related block and rewrites the note when the
// result differs from what is already on disk. An empty runID gets a fresh
// one, so single-note syncs are journaled under their own run.
func (s *Syncer) SyncNote(ctx context.Context, notePath, runID string) (Outcome, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	results, err := s.Related(ctx, notePath)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			if s.logger != nil {
				s.logger.Debug("no vector for note", zap.String("path", notePath))
			}
			return OutcomeSkipped, nil
		}
		return "", err
	}

	blockText := block.Render(results, s.renderOptions())
	original, err := s.vault.ReadText(notePath)
	if err != nil {
		return "", err
	}
	updated := block.Update(original, blockText)

	outcome := OutcomeUnchanged
	if updated != original {
		if err := s.vault.WriteText(notePath, updated); err != nil {
			return "", err
		}
		outcome = OutcomeSynced
	}
	if s.journal != nil {
		rec := &storage.SyncRecord{
			Path:         notePath,
			BlockHash:    hashBlock(blockText),
			RelatedCount: len(results),
			RunID:        runID,
		}
		if err := s.journal.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("failed to journal sync: %w", err)
		}
	}
	if s.logger != nil {
		s.logger.Debug("note synced",
			zap.String("path", notePath),
			zap.String("outcome", string(outcome)),
			zap.Int("related", len(results)),
		)
	}
	return outcome, nil
}

// SyncAll syncs every note in the vault under one run id and returns the
// aggregate counts. Per-note failures are counted, not fatal.
func (s *Syncer) SyncAll(ctx context.Context) (*Summary, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	notes, err := s.vault.List()
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunID: uuid.New().String(), Total: len(notes)}
	for _, note := range notes {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		outcome, err := s.SyncNote(ctx, note, summary.RunID)
		if err != nil {
			summary.Failed++
			if s.logger != nil {
				s.logger.Warn("note sync failed", zap.String("path", note), zap.Error(err))
			}
			continue
		}
		switch outcome {
		case OutcomeSynced:
			summary.Synced++
		case OutcomeUnchanged:
			summary.Unchanged++
		case OutcomeSkipped:
			summary.Skipped++
		}
	}
	if s.logger != nil {
		s.logger.Info("vault synced",
			zap.String("run_id", summary.RunID),
			zap.Int("total", summary.Total),
			zap.Int("synced", summary.Synced),
			zap.Int("unchanged", summary.Unchanged),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// RemoveAll strips the managed block from every note and clears journal rows.
// Returns the number of notes rewritten.
func (s *Syncer) RemoveAll(ctx context.Context) (int, error) {
	notes, err := s.vault.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, note := range notes {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		original, err := s.vault.ReadText(note)
		if err != nil {
			return removed, err
		}
		stripped := block.Remove(original)
		if stripped == original {
			continue
		}
		if err := s.vault.WriteText(note, stripped); err != nil {
			return removed, err
		}
		removed++
		if s.journal != nil {
			if err := s.journal.Delete(ctx, note); err != nil {
				return removed, fmt.Errorf("failed to clear journal row: %w", err)
			}
		}
	}
	return removed, nil
}

func (s *Syncer) searchOptions(notePath string) index.SearchOptions {
	exclude := make([]string, 0, len(s.cfg.Related.ExcludePaths)+1)
	exclude = append(exclude, s.cfg.Related.ExcludePaths...)
	exclude = append(exclude, notePath)
	return index.SearchOptions{
		K:              s.cfg.Related.Limit,
		Threshold:      s.cfg.Related.ThresholdOrDefault(),
		ExcludePaths:   exclude,
		ExcludeFolders: s.cfg.Related.ExcludeFolders,
	}
}

func (s *Syncer) renderOptions() block.RenderOptions {
	return block.RenderOptions{
		Heading:      s.cfg.Related.Heading,
		ShowScores:   s.cfg.Related.ShowScores,
		UsePathLinks: s.cfg.Related.UsePathLinksOrDefault(),
	}
}

func hashBlock(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
