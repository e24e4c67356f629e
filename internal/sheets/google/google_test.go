package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"parceiros/internal/core"
	ports "parceiros/internal/sheets"
)

// fakeSheets serves the handful of Sheets v4 endpoints the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    map[string][][]any
	ids     map[string]int64
	added   []string
	cleared []string
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs: map[string][][]any{"Parceiros": nil},
		ids:  map[string]int64{"Parceiros": 42},
	}
}

func tabTitle(rng string) string {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[:i]
	}
	rng = strings.TrimPrefix(strings.TrimSuffix(rng, "'"), "'")
	return strings.ReplaceAll(rng, "''", "'")
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/values:batchGet"):
		var out []map[string]any
		for _, rng := range r.URL.Query()["ranges"] {
			out = append(out, map[string]any{"range": rng, "values": f.tabs[tabTitle(rng)]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valueRanges": out})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			title := rq.AddSheet.Properties.Title
			f.tabs[title] = nil
			f.ids[title] = int64(len(f.ids) + 100)
			f.added = append(f.added, title)
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear")
		f.tabs[tabTitle(rng)] = nil
		f.cleared = append(f.cleared, tabTitle(rng))
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, `{"error":{"message":"bad input option"}}`, http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rows := make([][]any, len(vr.Values))
		for i, row := range vr.Values {
			rows[i] = row
		}
		f.tabs[tabTitle(path[strings.Index(path, "/values/")+len("/values/"):])] = rows
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet:
		var sheets []map[string]any
		for title, id := range f.ids {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	default:
		http.Error(w, `{"error":{"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets, target ports.Target) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewWithService(svc, ports.StaticTarget(target))
}

func TestPushCreatesTabsAndFetchReadsBack(t *testing.T) {
	f := newFakeSheets()
	c := newTestClient(t, f, ports.Target{SpreadsheetID: "sheet-1", SheetID: 42})
	ctx := context.Background()

	partners := []core.Partner{{
		ID: "p1", Name: "Ana", Username: "ana", Commission: decimal.NewFromInt(10), Bonus: decimal.NewFromInt(50), Active: true,
		Transactions: []core.Transaction{{ID: "t1", PartnerID: "p1", Date: "2023-07-01", Amount: decimal.RequireFromString("1000.00"), Type: core.Incoming}},
		Clients:      []core.Client{{ID: "c1", PartnerID: "p1", Login: "joao01", Active: true}},
	}}
	if err := c.Push(ctx, partners); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(f.added) != 2 {
		t.Fatalf("added tabs = %v, want Transactions and Clients", f.added)
	}
	if len(f.tabs["Parceiros"]) != 2 {
		t.Fatalf("partners tab rows = %d", len(f.tabs["Parceiros"]))
	}
	if len(f.cleared) != 3 {
		t.Fatalf("cleared = %v", f.cleared)
	}

	got, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].Username != "ana" || len(got[0].Transactions) != 1 || len(got[0].Clients) != 1 {
		t.Fatalf("fetched = %+v", got)
	}
	if !got[0].Transactions[0].Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("amount = %s", got[0].Transactions[0].Amount)
	}
}

func TestFetchWithoutTarget(t *testing.T) {
	c := newTestClient(t, newFakeSheets(), ports.Target{})
	if _, err := c.Fetch(context.Background()); !errors.Is(err, ports.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := newSheetsService(context.Background(), Credentials{})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), Credentials{File: t.TempDir() + "/missing.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuote(t *testing.T) {
	cases := map[string]string{
		"Partners":   "'Partners'",
		"Ana's tab":  "'Ana''s tab'",
		"2024 Sheet": "'2024 Sheet'",
	}
	for in, want := range cases {
		if got := quote(in); got != want {
			t.Errorf("quote(%q) = %q, want %q", in, got, want)
		}
		if back := tabTitle(want + "!A1"); back != in {
			t.Errorf("tabTitle(%q) = %q", want, back)
		}
	}
}
