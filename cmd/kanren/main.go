// Package main is the kanren CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/index"
	"github.com/hyperjump/kanren/internal/server"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/syncer"
	"github.com/hyperjump/kanren/internal/vault"
	"github.com/hyperjump/kanren/internal/watcher"
	"github.com/hyperjump/kanren/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kanren/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "sync":
		runSync()
	case "related":
		runRelated()
	case "remove":
		runRemove()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kanren version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Journal *storage.Journal
	Syncer  *syncer.Syncer
}

func (c *Components) Close() {
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	journal, err := storage.NewJournal(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync journal: %w", err)
	}
	opts := []syncer.Option{syncer.WithJournal(journal)}
	if debug && logger != nil {
		opts = append(opts, syncer.WithLogger(logger))
	}
	s := syncer.New(vault.New(cfg.Vault.Path), index.New(), cfg, opts...)
	return &Components{Journal: journal, Syncer: s}, nil
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, per-note outcomes)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		sync := components.Syncer
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond),
		}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(cfg.Vault.Path, cfg.Embeddings.Path,
			func(path string) {
				rel, ok := sync.Vault().Rel(path)
				if !ok {
					return
				}
				if _, err := sync.SyncNote(context.Background(), rel, ""); err != nil {
					logger.Warn("watch sync failed", zap.String("path", rel), zap.Error(err))
				}
			},
			func() {
				if _, err := sync.SyncAll(context.Background()); err != nil {
					logger.Warn("watch resync failed", zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Syncer, components.Journal, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if fs.NArg() > 0 {
		note := fs.Arg(0)
		if !components.Syncer.Vault().Exists(note) {
			fmt.Fprintf(os.Stderr, "Note not found: %s\n", note)
			os.Exit(1)
		}
		outcome, err := components.Syncer.SyncNote(ctx, note, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", note, outcome)
		return
	}
	summary, err := components.Syncer.SyncAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("synced:    %d\n", summary.Synced)
	fmt.Printf("unchanged: %d\n", summary.Unchanged)
	fmt.Printf("skipped:   %d   # notes without an embedding\n", summary.Skipped)
	fmt.Printf("failed:    %d\n", summary.Failed)
}

func runRelated() {
	fs := flag.NewFlagSet("related", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	showScores := fs.Bool("scores", false, "print similarity scores")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kanren related [flags] <note-path>")
		os.Exit(1)
	}
	note := fs.Arg(0)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	results, err := components.Syncer.Related(context.Background(), note)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Related lookup failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No related notes found.")
		return
	}
	for _, r := range results {
		if *showScores {
			fmt.Printf("%.3f  %s\n", r.Score, r.Path)
		} else {
			fmt.Println(r.Path)
		}
	}
}

func runRemove() {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	removed, err := components.Syncer.RemoveAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Removal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed related-notes blocks from %d note(s)\n", removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if err := components.Syncer.EnsureLoaded(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load embeddings: %v\n", err)
		os.Exit(1)
	}
	notes, err := components.Syncer.Vault().List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list vault: %v\n", err)
		os.Exit(1)
	}
	journaled, err := components.Journal.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		os.Exit(1)
	}
	ix := components.Syncer.IndexStats()

	switch *outputFormat {
	case "json":
		status := map[string]any{
			"notes":           len(notes),
			"index_size":      ix.Size,
			"index_format":    ix.Format,
			"journaled_notes": journaled,
			"vault_path":      cfg.Vault.Path,
			"embeddings_path": cfg.Embeddings.Path,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("notes:            %d   # markdown notes in the vault\n", len(notes))
		fmt.Printf("index_size:       %d   # embedding entries loaded\n", ix.Size)
		fmt.Printf("index_format:     %s\n", ix.Format)
		fmt.Printf("journaled_notes:  %d   # notes with a recorded sync\n", journaled)
		fmt.Printf("vault_path:       %s\n", cfg.Vault.Path)
		fmt.Printf("embeddings_path:  %s\n", cfg.Embeddings.Path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kanren - Related-notes engine for markdown vaults

Keeps a managed "related notes" block inside each note in sync with the
nearest neighbors from a pre-computed embedding file.

Usage:
  kanren server [flags]           Start the HTTP server (and watcher, if enabled)
  kanren sync [flags] [note]      Sync one note, or the whole vault
  kanren related [flags] <note>   Print a note's related notes
  kanren remove [flags]           Strip the managed block from all notes
  kanren status [flags]           Show vault/index/journal status
  kanren version                  Show version
  kanren help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kanren/config.yaml)
  --debug            Enable debug logging (watch events, per-note outcomes)

Sync Flags:
  --config string    Config file path
  --debug            Enable debug logging

Related Flags:
  --config string    Config file path
  --scores           Print similarity scores

Status Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Examples:
  kanren server
  kanren sync
  kanren sync projects/roadmap.md
  kanren related --scores projects/roadmap.md
  kanren status --output json
  kanren remove`)
}
