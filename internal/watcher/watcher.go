// Package watcher watches the vault tree and the embeddings file with
// fsnotify, debouncing bursts of events into single callbacks.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the vault and the embeddings file and invokes callbacks on
// changes. onNote receives absolute paths of changed markdown files;
// onEmbeddings fires when the embeddings file is rewritten.
type Watcher struct {
	vaultRoot      string
	embeddingsPath string
	onNote         func(path string)
	onEmbeddings   func()
	debounce       time.Duration
	watcher        *fsnotify.Watcher
	mu             sync.Mutex
	debounceMap    map[string]*time.Timer
	done           chan struct{}
	started        bool
	stopOnce       sync.Once
	logger         *zap.Logger // optional; when set, logs debug events
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (directory adds, file events).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the event debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher. onNote is called for changed vault notes and
// onEmbeddings when the embeddings file changes; either may be nil.
func New(vaultRoot, embeddingsPath string, onNote func(path string), onEmbeddings func(), opts ...Option) *Watcher {
	w := &Watcher{
		vaultRoot:      vaultRoot,
		embeddingsPath: embeddingsPath,
		onNote:         onNote,
		onEmbeddings:   onEmbeddings,
		debounce:       defaultDebounce,
		debounceMap:    make(map[string]*time.Timer),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	if err := w.addVaultDirs(); err != nil {
		w.Stop()
		return err
	}
	if w.embeddingsPath != "" {
		// Watch the directory, not the file: editors and exporters commonly
		// replace the file, which drops a direct file watch.
		if err := watcher.Add(filepath.Dir(w.embeddingsPath)); err != nil {
			w.Stop()
			return err
		}
	}
	if w.logger != nil {
		w.logger.Debug("watcher started",
			zap.String("vault", w.vaultRoot),
			zap.String("embeddings", w.embeddingsPath),
		)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		for _, t := range w.debounceMap {
			t.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) addVaultDirs() error {
	return filepath.WalkDir(w.vaultRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.vaultRoot && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	path := filepath.Clean(ev.Name)
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}

	if w.embeddingsPath != "" && path == filepath.Clean(w.embeddingsPath) {
		w.schedule(path, w.onEmbeddings)
		return
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		// Newly created directory inside the vault: start watching it.
		if strings.HasPrefix(path, filepath.Clean(w.vaultRoot)+string(os.PathSeparator)) {
			_ = w.watcher.Add(path)
		}
		return
	}
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return
	}
	if w.onNote != nil {
		w.schedule(path, func() { w.onNote(path) })
	}
}

// schedule collapses rapid events for the same path into one callback after
// the debounce interval.
func (w *Watcher) schedule(key string, fn func()) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[key]; ok {
		t.Stop()
	}
	w.debounceMap[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, key)
		w.mu.Unlock()
		fn()
	})
}
