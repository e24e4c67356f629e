package http

import (
	"net/http"

	"parceiros/internal/auth"
	plog "parceiros/internal/log"
)

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin checks the credential and flips the persisted session flag.
// No token is issued and no route is gated on the flag.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	if s.auth == nil {
		writeErr(w, r, auth.ErrNotConfigured)
		return
	}
	logger := plog.FromContext(r.Context())
	if err := s.auth.Authenticate(r.Context(), in.Username, in.Password); err != nil {
		logger.WarnContext(r.Context(), "Login rejected", plog.FieldOperation, plog.OpLogin, plog.FieldClientIP, extractClientIP(r))
		writeErr(w, r, err)
		return
	}
	if err := s.store.SetAuthenticated(r.Context(), true, s.now()); err != nil {
		writeErr(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "Login accepted", plog.FieldOperation, plog.OpLogin)
	s.handleSession(w, r)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetAuthenticated(r.Context(), false, s.now()); err != nil {
		writeErr(w, r, err)
		return
	}
	s.handleSession(w, r)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Session(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
