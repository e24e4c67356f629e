package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

// partnerInput is the create and update body. Nil fields keep the current
// value on update and take the default on create.
type partnerInput struct {
	Name       *string          `json:"name"`
	Username   *string          `json:"username"`
	Commission *decimal.Decimal `json:"commission"`
	Bonus      *decimal.Decimal `json:"bonus"`
	Active     *bool            `json:"active"`
}

func (in partnerInput) apply(p core.Partner) core.Partner {
	if in.Name != nil {
		p.Name = sanitizeInput(*in.Name)
	}
	if in.Username != nil {
		p.Username = sanitizeInput(*in.Username)
	}
	if in.Commission != nil {
		p.Commission = *in.Commission
	}
	if in.Bonus != nil {
		p.Bonus = *in.Bonus
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	return p
}

func (s *Server) handleListPartners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Partners())
}

func (s *Server) handleGetPartner(w http.ResponseWriter, r *http.Request) {
	p, ok := s.store.Partner(r.PathValue("id"))
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePartner(w http.ResponseWriter, r *http.Request) {
	var in partnerInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.store.AddPartner(r.Context(), in.apply(core.Partner{Active: true}))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	plog.NewStructuredLogger(plog.FromContext(r.Context())).LogPartnerChange(r.Context(), plog.OpCreate, p.ID, p.Username, 1)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePartner(w http.ResponseWriter, r *http.Request) {
	current, ok := s.store.Partner(r.PathValue("id"))
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	var in partnerInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.store.UpdatePartner(r.Context(), in.apply(current))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	plog.NewStructuredLogger(plog.FromContext(r.Context())).LogPartnerChange(r.Context(), plog.OpUpdate, p.ID, p.Username, 1)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePartner(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePartner(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	plog.NewStructuredLogger(plog.FromContext(r.Context())).LogPartnerChange(r.Context(), plog.OpDelete, id, "", 1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePartnerSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.store.Summary(r.Context(), r.PathValue("id"), s.now())
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type summaryResponse struct {
	Partners []core.PartnerSummary `json:"partners"`
	Total    core.TotalSummary     `json:"total"`
	Policy   string                `json:"policy"`
}

// handleSummary returns every partner's summary and the dashboard total,
// computed at one instant.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	partners := s.store.Summaries(r.Context(), now)
	writeJSON(w, http.StatusOK, summaryResponse{
		Partners: partners,
		Total:    core.Total(partners),
		Policy:   s.store.WindowPolicy().String(),
	})
}
