package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
	"parceiros/internal/website"
	"parceiros/internal/website/fake"
)

const sampleCSV = "data,descricao,valor,tipo\n2024-05-01,Depósito,100,entrada\n2024-05-02,Saque,40,saida\n"

func sitePartner(username string) core.Partner {
	return core.Partner{Name: strings.TrimPrefix(username, "@"), Username: username, Commission: decimal.NewFromInt(5), Bonus: decimal.Zero, Active: true}
}

func TestWebsiteImportMergesAndDownloads(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	addPartner(t, st, "@tayna")
	site := fake.New(
		fake.WithCredentials("bot", "pw"),
		fake.WithPartners(sitePartner("@tayna"), sitePartner("@raquel"), sitePartner("@carlos")),
		fake.WithCSV("@raquel", sampleCSV),
		fake.WithCSV("@carlos", "data,valor,tipo\n2024-05-01,xx,entrada\n"),
		fake.WithDelay(time.Millisecond),
	)
	imp := NewWebsiteImporter(st, site, "bot", "pw", 2)

	res, err := imp.Import(ctx)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Fetched != 3 || res.Added != 2 || res.Transactions != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].Username != "@carlos" {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if site.Downloads() != 2 {
		t.Fatalf("downloads = %d, want only new partners", site.Downloads())
	}
	raquel, ok := st.FindByUsername("@raquel")
	if !ok || len(raquel.Transactions) != 2 {
		t.Fatalf("raquel = %+v", raquel)
	}
	if got := len(st.Partners()); got != 3 {
		t.Fatalf("partners = %d", got)
	}

	again, err := imp.Import(ctx)
	if err != nil || again.Added != 0 || again.Transactions != 0 {
		t.Fatalf("second import = %+v %v", again, err)
	}
}

func TestWebsiteImportRejectedLogin(t *testing.T) {
	site := fake.New(fake.WithCredentials("bot", "pw"))
	imp := NewWebsiteImporter(newTestStore(t), site, "bot", "nope", 0)
	if _, err := imp.Import(context.Background()); !errors.Is(err, website.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestWebsiteImportSiteDown(t *testing.T) {
	boom := errors.New("503")
	imp := NewWebsiteImporter(newTestStore(t), fake.New(fake.WithFailure(boom)), "", "", 1)
	if _, err := imp.Import(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected site failure, got %v", err)
	}
}
