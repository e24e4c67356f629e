package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"parceiros/internal/core"
	plog "parceiros/internal/log"
	ports "parceiros/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Default tab titles. The partners tab may instead be picked by sheet id.
const (
	PartnersTab     = "Partners"
	TransactionsTab = "Transactions"
	ClientsTab      = "Clients"
)

type Client struct {
	svc    *gsheet.Service
	target ports.TargetSource
	logger *slog.Logger
}

// Ensure interface conformance
var _ ports.Syncer = (*Client)(nil)

// Credentials selects the service account. JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, target ports.TargetSource, creds Credentials) (*Client, error) {
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, target), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, target ports.TargetSource) *Client {
	return &Client{svc: svc, target: target, logger: slog.Default().With(plog.FieldComponent, plog.ComponentSheets)}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor File is set.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(creds.JSON)
	serviceAccountFile := strings.TrimSpace(creds.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

type layout struct {
	spreadsheetID string
	partners      string
	transactions  string
	clients       string
}

// resolve finds the tab titles, creating the missing ones when create is set.
func (c *Client) resolve(ctx context.Context, create bool) (layout, error) {
	if c.svc == nil {
		return layout{}, errors.New("sheets service not initialized")
	}
	t, err := c.target(ctx)
	if err != nil {
		return layout{}, err
	}
	if t.SpreadsheetID == "" {
		return layout{}, ports.ErrNotConfigured
	}
	ss, err := c.svc.Spreadsheets.Get(t.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return layout{}, fmt.Errorf("get spreadsheet %s: %w", t.SpreadsheetID, err)
	}
	titles := map[string]bool{}
	l := layout{spreadsheetID: t.SpreadsheetID, partners: PartnersTab, transactions: TransactionsTab, clients: ClientsTab}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		titles[sh.Properties.Title] = true
		if t.SheetID != 0 && sh.Properties.SheetId == t.SheetID {
			l.partners = sh.Properties.Title
		}
	}

	var missing []string
	for _, title := range []string{l.partners, l.transactions, l.clients} {
		if !titles[title] {
			missing = append(missing, title)
		}
	}
	if len(missing) == 0 || !create {
		return l, nil
	}
	reqs := make([]*gsheet.Request, 0, len(missing))
	for _, title := range missing {
		reqs = append(reqs, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}}})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(t.SpreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return layout{}, fmt.Errorf("add tabs %v: %w", missing, err)
	}
	c.logger.InfoContext(ctx, "Created missing tabs", "spreadsheet_id", t.SpreadsheetID, "tabs", missing)
	return l, nil
}

// Push rewrites the three tabs with the current partner list.
func (c *Client) Push(ctx context.Context, partners []core.Partner) error {
	l, err := c.resolve(ctx, true)
	if err != nil {
		return err
	}
	tables := ports.Encode(partners)
	writes := []struct {
		tab  string
		rows [][]any
	}{
		{l.partners, tables.Partners},
		{l.transactions, tables.Transactions},
		{l.clients, tables.Clients},
	}
	for _, w := range writes {
		if _, err := c.svc.Spreadsheets.Values.Clear(l.spreadsheetID, quote(w.tab), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", w.tab, err)
		}
		// RAW keeps ids, dates and amounts as text.
		vr := &gsheet.ValueRange{Values: w.rows}
		if _, err := c.svc.Spreadsheets.Values.Update(l.spreadsheetID, quote(w.tab)+"!A1", vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write %s: %w", w.tab, err)
		}
	}
	c.logger.InfoContext(ctx, "Pushed partners", "spreadsheet_id", l.spreadsheetID, "partners", len(partners))
	return nil
}

// Fetch reads the three tabs in one batch and decodes them.
func (c *Client) Fetch(ctx context.Context) ([]core.Partner, error) {
	l, err := c.resolve(ctx, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(l.spreadsheetID).
		Ranges(quote(l.partners), quote(l.transactions), quote(l.clients)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tabs: %w", err)
	}
	var tables ports.Tables
	for i, vr := range resp.ValueRanges {
		rows := toRows(vr.Values)
		switch i {
		case 0:
			tables.Partners = rows
		case 1:
			tables.Transactions = rows
		case 2:
			tables.Clients = rows
		}
	}
	partners, err := ports.Decode(tables)
	if err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	return partners, nil
}

func toRows(values [][]interface{}) [][]any {
	out := make([][]any, len(values))
	for i, r := range values {
		out[i] = r
	}
	return out
}

// quote wraps a tab title for use in A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
