package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/index"
	"github.com/hyperjump/kanren/internal/storage"
)

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	s.logger.Debug("related request", zap.String("path", path))
	results, err := s.syncer.Related(r.Context(), path)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no embedding for note")
			return
		}
		s.logger.Error("related lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []index.Result{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"related": results,
	})
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.syncer.SyncAll(r.Context())
	if err != nil {
		s.logger.Error("sync failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSyncNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.syncer.Vault().Exists(req.Path) {
		s.respondError(w, http.StatusNotFound, "note not found")
		return
	}
	outcome, err := s.syncer.SyncNote(r.Context(), req.Path, "")
	if err != nil {
		s.logger.Error("note sync failed", zap.String("path", req.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": req.Path, "outcome": string(outcome)})
}

func (s *Server) handleRemoveBlocks(w http.ResponseWriter, r *http.Request) {
	removed, err := s.syncer.RemoveAll(r.Context())
	if err != nil {
		s.logger.Error("block removal failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notes, err := s.syncer.Vault().List()
	if err != nil {
		s.logger.Error("status: vault list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ix := s.syncer.IndexStats()
	resp := map[string]any{
		"notes":        len(notes),
		"index_loaded": ix.Loaded,
		"index_size":   ix.Size,
		"index_format": ix.Format,
	}
	if s.journal != nil {
		journaled, err := s.journal.Count(ctx)
		if err != nil {
			s.logger.Error("status: journal count failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["journaled_notes"] = journaled
		if at, err := s.journal.LastSyncedAt(ctx); err == nil && !at.IsZero() {
			resp["last_synced_at"] = at
		}
		if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	resp["config"] = map[string]any{
		"vault_path":      s.cfg.Vault.Path,
		"embeddings_path": s.cfg.Embeddings.Path,
		"limit":           s.cfg.Related.Limit,
		"threshold":       s.cfg.Related.ThresholdOrDefault(),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
