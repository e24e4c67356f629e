package http

import (
	"fmt"
	"net/http"
	"strings"

	"parceiros/internal/core"
	"parceiros/internal/csvio"
	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	typ, err := parseType(r.URL.Query().Get("type"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	windowed, err := parseWindowFlag(r.URL.Query().Get("window"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var within *core.Window
	if windowed {
		b := s.store.WindowPolicy().Bounds(s.now())
		within = &b
	}
	txs, ok := s.store.RecentTransactions(r.PathValue("id"), typ, within)
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, done, err := csvBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	defer done()

	n, err := s.store.ImportTransactions(r.Context(), id, body)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	plog.NewStructuredLogger(plog.FromContext(r.Context())).LogPartnerChange(r.Context(), plog.OpImport, id, "", n)
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// handleExportTransactions downloads the partner's transactions inside the
// current summary window as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.store.Partner(id)
	if !ok {
		writeErr(w, r, store.ErrPartnerNotFound)
		return
	}
	txs, window, _ := s.store.WindowTransactions(r.Context(), id, s.now())

	setAttachment(w, fmt.Sprintf("%s_%s.csv", p.Username, strings.ReplaceAll(window.String(), "..", "_")))
	if err := csvio.WriteTransactions(w, txs); err != nil {
		plog.NewStructuredLogger(plog.FromContext(r.Context())).LogError(r.Context(), "Export failed", err, plog.OpExport, plog.NewFields().WithPartner(id, p.Username))
	}
}

// handleExportReport downloads the filtered cross-partner report as CSV.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseReportFilter(r.URL.Query())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rep := s.store.Report(f)
	rows := make([]csvio.PartnerTransaction, 0, len(rep.Rows))
	for _, row := range rep.Rows {
		rows = append(rows, csvio.PartnerTransaction{Partner: row.PartnerName, Transaction: row.Transaction})
	}

	setAttachment(w, fmt.Sprintf("transactions_%s.csv", s.now().Format(core.DateLayout)))
	if err := csvio.WriteReport(w, rows); err != nil {
		plog.NewStructuredLogger(plog.FromContext(r.Context())).LogError(r.Context(), "Report export failed", err, plog.OpExport, nil)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseReportFilter(r.URL.Query())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rep := s.store.Report(f)
	if rep.Rows == nil {
		rep.Rows = []store.ReportRow{}
	}
	writeJSON(w, http.StatusOK, rep)
}

func setAttachment(w http.ResponseWriter, filename string) {
	filename = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '/' || r < 32 {
			return '_'
		}
		return r
	}, filename)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
