// Package http serves the dashboard JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"parceiros/internal/auth"
	plog "parceiros/internal/log"
	"parceiros/internal/middleware/ratelimit"
	"parceiros/internal/middleware/security"
	"parceiros/internal/middleware/trace"
	"parceiros/internal/services"
	"parceiros/internal/store"
)

// SyncRunner is the sheet sync as seen by the API.
type SyncRunner interface {
	Status(ctx context.Context) services.SyncStatus
	Push(ctx context.Context) error
	Pull(ctx context.Context) (int, error)
}

// Importer runs the external website import.
type Importer interface {
	Import(ctx context.Context) (services.ImportResult, error)
}

// Deps are the collaborators behind the handlers. Importer may be nil when
// no website credentials are configured.
type Deps struct {
	Store    *store.Store
	Sync     SyncRunner
	Importer Importer
	Auth     auth.Authenticator
	Logger   *plog.Logger
	Now      func() time.Time

	// RequestsPerMinute limits mutating requests per client IP.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	store    *store.Store
	sync     SyncRunner
	importer Importer
	auth     auth.Authenticator
	logger   *plog.Logger
	now      func() time.Time

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = plog.New(plog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		store:    deps.Store,
		sync:     deps.Sync,
		importer: deps.Importer,
		auth:     deps.Auth,
		logger:   deps.Logger,
		now:      deps.Now,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		tracer:   trace.NewMiddleware(deps.Logger, extractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(extractClientIP, ratelimit.MutatingOnly, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = recoverer(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/partners", s.handleListPartners)
	mux.HandleFunc("POST /api/partners", s.handleCreatePartner)
	mux.HandleFunc("GET /api/partners/{id}", s.handleGetPartner)
	mux.HandleFunc("PUT /api/partners/{id}", s.handleUpdatePartner)
	mux.HandleFunc("DELETE /api/partners/{id}", s.handleDeletePartner)
	mux.HandleFunc("GET /api/partners/{id}/summary", s.handlePartnerSummary)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /api/partners/{id}/transactions", s.handleRecentTransactions)
	mux.HandleFunc("POST /api/partners/{id}/transactions/import", s.handleImportTransactions)
	mux.HandleFunc("GET /api/partners/{id}/transactions/export", s.handleExportTransactions)
	mux.HandleFunc("GET /api/transactions", s.handleReport)
	mux.HandleFunc("GET /api/transactions/export", s.handleExportReport)

	mux.HandleFunc("GET /api/partners/{id}/clients", s.handleListClients)
	mux.HandleFunc("POST /api/partners/{id}/clients", s.handleCreateClient)
	mux.HandleFunc("POST /api/partners/{id}/clients/import", s.handleImportClients)
	mux.HandleFunc("GET /api/partners/{id}/clients/export", s.handleExportClients)
	mux.HandleFunc("GET /api/partners/{id}/clients/summary", s.handleClientBreakdown)

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/session", s.handleSession)

	mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync/push", s.handleSyncPush)
	mux.HandleFunc("POST /api/sync/pull", s.handleSyncPull)
	mux.HandleFunc("GET /api/config/sheets", s.handleGetSheetsConfig)
	mux.HandleFunc("PUT /api/config/sheets", s.handlePutSheetsConfig)

	mux.HandleFunc("POST /api/website/import", s.handleWebsiteImport)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"partners": len(s.store.Partners()),
	})
}
