package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
	"parceiros/internal/csvio"
	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

type clientInput struct {
	Login   string          `json:"login"`
	Name    string          `json:"name"`
	Active  *bool           `json:"active"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, ok := s.store.Clients(r.PathValue("id"))
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	if clients == nil {
		clients = []core.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in clientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	c := core.Client{
		Login:   sanitizeInput(in.Login),
		Name:    sanitizeInput(in.Name),
		Active:  in.Active == nil || *in.Active,
		Balance: in.Balance,
	}
	created, err := s.store.AddClient(r.Context(), r.PathValue("id"), c)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleImportClients(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, done, err := csvBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	defer done()

	added, skipped, err := s.store.ImportClients(r.Context(), id, body)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	plog.NewStructuredLogger(plog.FromContext(r.Context())).LogPartnerChange(r.Context(), plog.OpImport, id, "", added)
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "skipped": skipped})
}

func (s *Server) handleExportClients(w http.ResponseWriter, r *http.Request) {
	p, ok := s.store.Partner(r.PathValue("id"))
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	setAttachment(w, p.Username+"_clients.csv")
	if err := csvio.WriteClients(w, p.Clients); err != nil {
		plog.NewStructuredLogger(plog.FromContext(r.Context())).LogError(r.Context(), "Export failed", err, plog.OpExport, plog.NewFields().WithPartner(p.ID, p.Username))
	}
}

type clientBreakdownResponse struct {
	Window  core.Window            `json:"window"`
	Clients []store.ClientActivity `json:"clients"`
}

// handleClientBreakdown returns per-client activity inside the current window.
func (s *Server) handleClientBreakdown(w http.ResponseWriter, r *http.Request) {
	clients, window, ok := s.store.ClientBreakdown(r.Context(), r.PathValue("id"), s.now())
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	if clients == nil {
		clients = []store.ClientActivity{}
	}
	writeJSON(w, http.StatusOK, clientBreakdownResponse{Window: window, Clients: clients})
}
