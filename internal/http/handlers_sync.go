package http

import (
	"net/http"
	"strings"

	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.Status(r.Context()))
}

// handleSyncPush and handleSyncPull answer with the status after the run.
// Failures still carry the status so the dashboard can show the message.
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Push(r.Context()); err != nil {
		plog.NewStructuredLogger(plog.FromContext(r.Context())).LogError(r.Context(), "Sheet push failed", err, plog.OpSync, nil)
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Status(r.Context()))
}

func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	n, err := s.sync.Pull(r.Context())
	if err != nil {
		plog.NewStructuredLogger(plog.FromContext(r.Context())).LogError(r.Context(), "Sheet pull failed", err, plog.OpSync, nil)
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pulled": n,
		"status": s.sync.Status(r.Context()),
	})
}

func (s *Server) handleGetSheetsConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.SheetsConfig(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutSheetsConfig(w http.ResponseWriter, r *http.Request) {
	var cfg store.SheetsConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeErr(w, r, err)
		return
	}
	cfg.SpreadsheetID = strings.TrimSpace(cfg.SpreadsheetID)
	if cfg.SheetID < 0 {
		writeErr(w, r, invalid("sheetId must not be negative"))
		return
	}
	if err := s.store.SetSheetsConfig(r.Context(), cfg); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleWebsiteImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "website import is not configured")
		return
	}
	res, err := s.importer.Import(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
