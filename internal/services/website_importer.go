package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"parceiros/internal/core"
	plog "parceiros/internal/log"
	"parceiros/internal/website"
)

// DefaultImportConcurrency bounds parallel CSV downloads.
const DefaultImportConcurrency = 4

// ImportStore is the part of the store the website import needs.
type ImportStore interface {
	MergePartners(ctx context.Context, partners []core.Partner) ([]core.Partner, error)
	ImportTransactions(ctx context.Context, partnerID string, r io.Reader) (int, error)
}

// PartnerImportError is a per-partner download or import failure. Other
// partners are still imported.
type PartnerImportError struct {
	PartnerID string `json:"partnerId"`
	Username  string `json:"username"`
	Error     string `json:"error"`
}

type ImportResult struct {
	Fetched      int                  `json:"fetched"`
	Added        int                  `json:"added"`
	Transactions int                  `json:"transactions"`
	Failures     []PartnerImportError `json:"failures,omitempty"`
}

// WebsiteImporter logs in to the external site, merges the partners it does
// not know yet and imports their CSV exports.
type WebsiteImporter struct {
	store       ImportStore
	source      website.Source
	username    string
	password    string
	concurrency int
	logger      *slog.Logger
}

func NewWebsiteImporter(st ImportStore, src website.Source, username, password string, concurrency int) *WebsiteImporter {
	if concurrency <= 0 {
		concurrency = DefaultImportConcurrency
	}
	return &WebsiteImporter{
		store:       st,
		source:      src,
		username:    username,
		password:    password,
		concurrency: concurrency,
		logger:      slog.Default().With(plog.FieldComponent, plog.ComponentWebsite),
	}
}

// Import runs one full import. Only partners added by this run get their
// transactions downloaded, so repeating an import does not duplicate rows.
func (w *WebsiteImporter) Import(ctx context.Context) (ImportResult, error) {
	ok, err := w.source.Login(ctx, w.username, w.password)
	if err != nil {
		return ImportResult{}, fmt.Errorf("website login: %w", err)
	}
	if !ok {
		return ImportResult{}, website.ErrInvalidCredentials
	}
	fetched, err := w.source.FetchPartners(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("fetch partners: %w", err)
	}
	added, err := w.store.MergePartners(ctx, fetched)
	if err != nil {
		return ImportResult{}, fmt.Errorf("merge partners: %w", err)
	}
	res := ImportResult{Fetched: len(fetched), Added: len(added)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, p := range added {
		g.Go(func() error {
			n, err := w.importPartner(gctx, p)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.logger.WarnContext(gctx, "Partner import failed", "partner_id", p.ID, "username", p.Username, "error", err)
				res.Failures = append(res.Failures, PartnerImportError{PartnerID: p.ID, Username: p.Username, Error: err.Error()})
				return nil
			}
			res.Transactions += n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("website import: %w", err)
	}
	w.logger.InfoContext(ctx, "Website import finished",
		"fetched", res.Fetched,
		"added", res.Added,
		"transactions", res.Transactions,
		"failures", len(res.Failures))
	return res, nil
}

func (w *WebsiteImporter) importPartner(ctx context.Context, p core.Partner) (int, error) {
	csv, err := w.source.DownloadCSV(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("download csv: %w", err)
	}
	return w.store.ImportTransactions(ctx, p.ID, strings.NewReader(csv))
}
