package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/auth"
	"parceiros/internal/core"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
	sheetsmem "parceiros/internal/sheets/memory"
	"parceiros/internal/storage"
	"parceiros/internal/store"
	"parceiros/internal/website/fake"
)

var testNow = time.Date(2023, 7, 8, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	store  *store.Store
	sheets *sheetsmem.Store
	site   *fake.Site
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	sh := sheetsmem.New()
	site := fake.New(
		fake.WithCredentials("bot", "pw"),
		fake.WithPartners(core.Partner{Name: "Rita", Username: "rita", Active: true}),
		fake.WithCSV("rita", "date,description,amount,type\n2023-07-07,PIX,80,entrada\n"),
	)
	now := func() time.Time { return testNow }
	srv := NewServer(":0", Deps{
		Store:    st,
		Sync:     services.NewSyncService(st, sh, services.WithClock(now)),
		Importer: services.NewWebsiteImporter(st, site, "bot", "pw", 2),
		Auth:     auth.NewStatic("admin", hash),
		Logger:   plog.New(plog.Config{Output: io.Discard}),
		Now:      now,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: st, sheets: sh, site: site}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) json(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, "application/json", r)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) createPartner(t *testing.T, body string) core.Partner {
	t.Helper()
	rec := e.json(t, http.MethodPost, "/api/partners", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create partner status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[core.Partner](t, rec)
}

func TestHealthAndReady(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing middleware headers: %v", path, rec.Header())
		}
	}
}

func TestPartnerCRUD(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPartner(t, `{"name":"Ana","username":"ana","commission":"10","bonus":50}`)
	if p.ID == "" || !p.Active {
		t.Fatalf("created partner = %+v", p)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"duplicate username", http.MethodPost, "/api/partners", `{"name":"Other","username":"ANA"}`, http.StatusConflict},
		{"missing name", http.MethodPost, "/api/partners", `{"username":"x"}`, http.StatusUnprocessableEntity},
		{"commission too high", http.MethodPost, "/api/partners", `{"name":"X","username":"x","commission":101}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/partners", `{"name":`, http.StatusBadRequest},
		{"get", http.MethodGet, "/api/partners/" + p.ID, "", http.StatusOK},
		{"get unknown", http.MethodGet, "/api/partners/nope", "", http.StatusNotFound},
		{"update unknown", http.MethodPut, "/api/partners/nope", `{"name":"x"}`, http.StatusNotFound},
		{"update", http.MethodPut, "/api/partners/" + p.ID, `{"commission":"12.5","active":false}`, http.StatusOK},
		{"summary unknown", http.MethodGet, "/api/partners/nope/summary", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/partners/" + p.ID, `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.json(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Code >= 400 && rec.Code != http.StatusMethodNotAllowed {
				if body := decode[map[string]any](t, rec); body["error"] == "" {
					t.Fatalf("error body = %s", rec.Body.String())
				}
			}
		})
	}

	got, _ := e.store.Partner(p.ID)
	if got.Name != "Ana" || got.Active || got.Commission.String() != "12.5" {
		t.Fatalf("partial update lost fields: %+v", got)
	}

	if rec := e.json(t, http.MethodDelete, "/api/partners/"+p.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if rec := e.json(t, http.MethodDelete, "/api/partners/"+p.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rec.Code)
	}
}

func TestImportSummaryAndExport(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPartner(t, `{"name":"Ana","username":"ana","commission":10,"bonus":50}`)

	csv := "data,descrição,valor,tipo\n08/07/2023,Depósito,\"1.000,00\",entrada\n2023-07-02,Saque,200,saida\n2023-06-01,Old,999,entrada\n"
	rec := e.do(t, http.MethodPost, "/api/partners/"+p.ID+"/transactions/import", "text/csv", strings.NewReader(csv))
	if rec.Code != http.StatusOK || decode[map[string]int](t, rec)["imported"] != 3 {
		t.Fatalf("import status=%d body=%s", rec.Code, rec.Body.String())
	}

	bad := "date,description,amount,type\n2023-07-01,ok,10,entrada\n2023-07-02,bad,xx,entrada\n"
	rec = e.do(t, http.MethodPost, "/api/partners/"+p.ID+"/transactions/import", "text/csv", strings.NewReader(bad))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad import status=%d body=%s", rec.Code, rec.Body.String())
	}
	if lines := decode[errorBody](t, rec).Lines; len(lines) != 1 || lines[0].Line != 3 {
		t.Fatalf("line errors = %+v", lines)
	}

	rec = e.json(t, http.MethodGet, "/api/partners/"+p.ID+"/summary", "")
	sum := decode[core.PartnerSummary](t, rec)
	// window 2023-07-01..2023-07-08: in 1000, out 200, commission 100, bonus 50
	if sum.TotalIn.String() != "1000" || sum.TotalOut.String() != "200" || sum.FinalBalance.String() != "750" {
		t.Fatalf("summary = %+v", sum)
	}

	rec = e.json(t, http.MethodGet, "/api/summary", "")
	all := decode[summaryResponse](t, rec)
	if all.Total.PartnerCount != 1 || all.Total.TotalFinalBalance.String() != "750" || all.Policy != "trailing:7d" {
		t.Fatalf("dashboard = %+v", all)
	}

	rec = e.json(t, http.MethodGet, "/api/partners/"+p.ID+"/transactions?type=outgoing", "")
	if txs := decode[[]core.Transaction](t, rec); len(txs) != 1 || txs[0].Description != "Saque" {
		t.Fatalf("recent outgoing = %+v", txs)
	}
	if rec := e.json(t, http.MethodGet, "/api/partners/"+p.ID+"/transactions?type=sideways", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type status=%d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/partners/"+p.ID+"/transactions/export", "", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export status=%d headers=%v", rec.Code, rec.Header())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "ana_2023-07-01_2023-07-08.csv") {
		t.Fatalf("content disposition = %s", cd)
	}
	if body := rec.Body.String(); strings.Contains(body, "Old") || strings.Count(body, "\n") != 3 {
		t.Fatalf("export body = %q", body)
	}

	rec = e.json(t, http.MethodGet, "/api/transactions?search=saque&from=2023-07-01&to=2023-07-31", "")
	rep := decode[store.Report](t, rec)
	if rep.Count != 1 || rep.Rows[0].PartnerUsername != "ana" {
		t.Fatalf("report = %+v", rep)
	}
	if rec := e.json(t, http.MethodGet, "/api/transactions?from=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rec.Code)
	}
}

func TestWindowedViewsAndReportExport(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPartner(t, `{"name":"Ana","username":"ana"}`)
	_, err := e.store.AddTransactions(context.Background(), p.ID, []core.Transaction{
		{Date: "2023-07-07", Amount: decimal.NewFromInt(100), Type: core.Incoming, ClientName: "João", ClientLogin: "joao01", Description: "PIX"},
		{Date: "2023-07-06", Amount: decimal.NewFromInt(30), Type: core.Outgoing, ClientLogin: "JOAO01", Description: "Saque"},
		{Date: "2023-07-05", Amount: decimal.NewFromInt(20), Type: core.Incoming, Description: `Depósito de "Maria"`},
		{Date: "2023-06-01", Amount: decimal.NewFromInt(999), Type: core.Incoming, ClientName: "Velho", Description: "Old"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	base := "/api/partners/" + p.ID

	rec := e.json(t, http.MethodGet, base+"/clients/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("breakdown status=%d body=%s", rec.Code, rec.Body.String())
	}
	bd := decode[clientBreakdownResponse](t, rec)
	if bd.Window.Start.Format(core.DateLayout) != "2023-07-01" || len(bd.Clients) != 2 {
		t.Fatalf("breakdown = %+v", bd)
	}
	if c := bd.Clients[0]; c.Name != "João" || c.TransactionCount != 2 || c.TotalIn.String() != "100" || c.TotalOut.String() != "30" {
		t.Fatalf("top client = %+v", c)
	}
	if c := bd.Clients[1]; c.Name != "Maria" || c.TransactionCount != 1 {
		t.Fatalf("second client = %+v", c)
	}
	if rec := e.json(t, http.MethodGet, "/api/partners/nope/clients/summary", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown partner breakdown status=%d", rec.Code)
	}

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 4},
		{"?window=true", http.StatusOK, 3},
		{"?window=true&type=incoming", http.StatusOK, 2},
		{"?window=false", http.StatusOK, 4},
		{"?window=maybe", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run("recent"+tt.query, func(t *testing.T) {
			rec := e.json(t, http.MethodGet, base+"/transactions"+tt.query, "")
			if rec.Code != tt.code {
				t.Fatalf("status=%d want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			txs := decode[[]core.Transaction](t, rec)
			if len(txs) != tt.count {
				t.Fatalf("got %d transactions, want %d", len(txs), tt.count)
			}
		})
	}

	rec = e.do(t, http.MethodGet, "/api/transactions/export?from=2023-07-01&type=incoming", "", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("report export status=%d headers=%v", rec.Code, rec.Header())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions_2023-07-08.csv") {
		t.Fatalf("content disposition = %s", cd)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "date,time,client,client_login,partner,description,amount,type,method\n") ||
		!strings.Contains(body, "2023-07-07,,João,joao01,Ana,PIX,100.00,incoming,") ||
		strings.Contains(body, "Old") || strings.Contains(body, "Saque") || strings.Count(body, "\n") != 3 {
		t.Fatalf("report export body = %q", body)
	}
	if rec := e.do(t, http.MethodGet, "/api/transactions/export?to=soon", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status=%d", rec.Code)
	}
}

func TestClientsEndpoints(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPartner(t, `{"name":"Ana","username":"ana"}`)
	base := "/api/partners/" + p.ID + "/clients"

	if rec := e.json(t, http.MethodPost, base, `{"login":"joao01","name":"João"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create client status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := e.json(t, http.MethodPost, base, `{"login":"JOAO01"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate login status=%d", rec.Code)
	}
	if rec := e.json(t, http.MethodPost, base, `{"name":"no login"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing login status=%d", rec.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "clients.csv")
	_, _ = fw.Write([]byte("login,name,status\njoao01,João,ativo\nmaria,Maria,ativo\n"))
	_ = mw.Close()
	rec := e.do(t, http.MethodPost, base+"/import", mw.FormDataContentType(), &buf)
	if got := decode[map[string]int](t, rec); rec.Code != http.StatusOK || got["added"] != 1 || got["skipped"] != 1 {
		t.Fatalf("import clients status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = e.json(t, http.MethodGet, base, "")
	if clients := decode[[]core.Client](t, rec); len(clients) != 2 {
		t.Fatalf("clients = %+v", clients)
	}
	rec = e.do(t, http.MethodGet, base+"/export", "", nil)
	if !strings.Contains(rec.Body.String(), "maria") {
		t.Fatalf("clients export = %q", rec.Body.String())
	}
	if rec := e.json(t, http.MethodGet, "/api/partners/nope/clients", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown partner clients status=%d", rec.Code)
	}
}

func TestLoginLogoutSession(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.json(t, http.MethodPost, "/api/login", `{"username":"admin","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d", rec.Code)
	}
	rec := e.json(t, http.MethodPost, "/api/login", `{"username":"Admin","password":"s3cret"}`)
	sess := decode[store.Session](t, rec)
	if rec.Code != http.StatusOK || !sess.Authenticated || !sess.LastLogin.Equal(testNow) {
		t.Fatalf("login status=%d session=%+v", rec.Code, sess)
	}
	if !e.store.IsAuthenticated(context.Background()) {
		t.Fatalf("flag not persisted")
	}
	rec = e.json(t, http.MethodPost, "/api/logout", "")
	if decode[store.Session](t, rec).Authenticated {
		t.Fatalf("still authenticated after logout")
	}
	rec = e.json(t, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK || decode[store.Session](t, rec).Authenticated {
		t.Fatalf("session status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSyncEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.createPartner(t, `{"name":"Ana","username":"ana"}`)

	rec := e.json(t, http.MethodGet, "/api/sync/status", "")
	if st := decode[services.SyncStatus](t, rec); st.State != services.SyncIdle || st.LastSync != nil {
		t.Fatalf("initial status = %+v", st)
	}

	rec = e.json(t, http.MethodPost, "/api/sync/push", "")
	st := decode[services.SyncStatus](t, rec)
	if rec.Code != http.StatusOK || st.State != services.SyncSuccess || st.LastSync == nil {
		t.Fatalf("push status=%d body=%s", rec.Code, rec.Body.String())
	}
	if e.sheets.Pushes() != 1 {
		t.Fatalf("pushes = %d", e.sheets.Pushes())
	}

	e.sheets.SetFailure(errors.New("quota exceeded"))
	rec = e.json(t, http.MethodPost, "/api/sync/pull", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed pull status=%d", rec.Code)
	}
	rec = e.json(t, http.MethodGet, "/api/sync/status", "")
	if st := decode[services.SyncStatus](t, rec); st.State != services.SyncError || !strings.Contains(st.Message, "quota exceeded") {
		t.Fatalf("status after failure = %+v", st)
	}

	e.sheets.SetFailure(nil)
	rec = e.json(t, http.MethodPost, "/api/sync/pull", "")
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["pulled"] != float64(1) {
		t.Fatalf("pull status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSheetsConfigEndpoints(t *testing.T) {
	e := newTestEnv(t)
	rec := e.json(t, http.MethodPut, "/api/config/sheets", `{"spreadsheetId":" abc ","sheetId":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = e.json(t, http.MethodGet, "/api/config/sheets", "")
	if cfg := decode[store.SheetsConfig](t, rec); cfg.SpreadsheetID != "abc" || cfg.SheetID != 7 {
		t.Fatalf("config = %+v", cfg)
	}
	if rec := e.json(t, http.MethodPut, "/api/config/sheets", `{"sheetId":-1}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative sheet id status=%d", rec.Code)
	}
}

func TestWebsiteImportEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.json(t, http.MethodPost, "/api/website/import", "")
	res := decode[services.ImportResult](t, rec)
	if rec.Code != http.StatusOK || res.Added != 1 || res.Transactions != 1 {
		t.Fatalf("import status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = e.json(t, http.MethodPost, "/api/website/import", "")
	if res := decode[services.ImportResult](t, rec); res.Added != 0 || e.site.Downloads() != 1 {
		t.Fatalf("second import = %+v downloads=%d", res, e.site.Downloads())
	}

	e.srv.importer = nil
	if rec := e.json(t, http.MethodPost, "/api/website/import", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured import status=%d", rec.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	e := newTestEnv(t)
	limited := NewServer(":0", Deps{Store: e.store, Sync: services.NewSyncService(e.store, e.sheets), RequestsPerMinute: 1,
		Logger: plog.New(plog.Config{Output: io.Discard})})
	defer limited.Shutdown(context.Background())

	send := func(method string) int {
		rec := httptest.NewRecorder()
		limited.Handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/logout", nil))
		return rec.Code
	}
	if code := send(http.MethodPost); code != http.StatusOK {
		t.Fatalf("first post = %d", code)
	}
	if code := send(http.MethodPost); code != http.StatusTooManyRequests {
		t.Fatalf("second post = %d", code)
	}
	rec := httptest.NewRecorder()
	limited.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reads should not be limited: %d", rec.Code)
	}
}
