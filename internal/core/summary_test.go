package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarizeCommissionAndBonus(t *testing.T) {
	p := Partner{ID: "p1", Name: "Ana", Username: "ana", Commission: dec("10"), Bonus: dec("50")}
	s := Summarize(p, []Transaction{
		tx("a", "2023-07-01", 1000, Incoming),
		tx("b", "2023-07-02", 200, Outgoing),
	})
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"totalIn", s.TotalIn, "1000"},
		{"totalOut", s.TotalOut, "200"},
		{"commissionValue", s.CommissionValue, "100"},
		{"finalBalance", s.FinalBalance, "750"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Fatalf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if s.TransactionCount != 2 || s.ClientCount != 0 {
		t.Fatalf("counts: tx=%d clients=%d", s.TransactionCount, s.ClientCount)
	}
}

func TestSummarizeNoRoundingAndNegativeBalance(t *testing.T) {
	p := Partner{Commission: dec("12.5"), Bonus: dec("0")}
	in := tx("a", "2023-07-01", 0, Incoming)
	in.Amount = dec("33.33")
	out := tx("b", "2023-07-01", 500, Outgoing)
	s := Summarize(p, []Transaction{in, out})
	if !s.CommissionValue.Equal(dec("4.166250")) {
		t.Fatalf("commissionValue = %s", s.CommissionValue)
	}
	if !s.FinalBalance.Equal(dec("-470.83625")) {
		t.Fatalf("finalBalance = %s", s.FinalBalance)
	}
}

func TestSummarizeClientCount(t *testing.T) {
	mk := func(id, login, name string) Transaction {
		t := tx(id, "2023-07-01", 1, Incoming)
		t.ClientLogin, t.ClientName = login, name
		return t
	}
	s := Summarize(Partner{}, []Transaction{
		mk("1", "joao", "João"),
		mk("2", "JOAO", "João S."),
		mk("3", "", "Maria"),
		mk("4", "", "Maria"),
		mk("5", "", ""),
	})
	if s.ClientCount != 2 {
		t.Fatalf("clientCount = %d, want 2", s.ClientCount)
	}
	if s.TransactionCount != 5 {
		t.Fatalf("transactionCount = %d, want 5", s.TransactionCount)
	}
}

func TestSummarizeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := Partner{
			Commission: decimal.New(rng.Int63n(10001), -2), // 0.00..100.00
			Bonus:      decimal.New(rng.Int63n(100000)-50000, -2),
		}
		var txs []Transaction
		signed := decimal.Zero
		n := rng.Intn(30)
		for j := 0; j < n; j++ {
			typ := Incoming
			if rng.Intn(2) == 0 {
				typ = Outgoing
			}
			tr := Transaction{Amount: decimal.New(rng.Int63n(1000000), -2), Type: typ}
			signed = signed.Add(tr.Signed())
			txs = append(txs, tr)
		}
		s := Summarize(p, txs)
		if !s.TotalIn.Sub(s.TotalOut).Equal(signed) {
			t.Fatalf("iteration %d: in-out=%s signed=%s", i, s.TotalIn.Sub(s.TotalOut), signed)
		}
		if !s.CommissionValue.Equal(s.TotalIn.Mul(p.Commission).Div(decimal.NewFromInt(100))) {
			t.Fatalf("iteration %d: commission %s", i, s.CommissionValue)
		}
		want := s.TotalIn.Sub(s.TotalOut).Sub(s.CommissionValue).Add(p.Bonus)
		if !s.FinalBalance.Equal(want) {
			t.Fatalf("iteration %d: finalBalance %s want %s", i, s.FinalBalance, want)
		}
		if s.TransactionCount != len(txs) {
			t.Fatalf("iteration %d: transactionCount %d want %d", i, s.TransactionCount, len(txs))
		}
	}
}

func TestSummarizeAtUsesWindow(t *testing.T) {
	p := Partner{ID: "p1", Commission: dec("10"), Bonus: dec("5"), Transactions: []Transaction{
		tx("old", "2023-06-01", 999, Incoming),
		tx("new", "2023-07-07", 100, Incoming),
		tx("bad", "??", 1, Incoming),
	}}
	now := time.Date(2023, 7, 8, 0, 0, 0, 0, time.UTC)
	s, excluded := SummarizeAt(p, DefaultWindowPolicy(), now)
	if !s.TotalIn.Equal(dec("100")) || s.TransactionCount != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if len(excluded) != 1 || excluded[0].TransactionID != "bad" {
		t.Fatalf("excluded = %+v", excluded)
	}
	if s.Window.Start.Format(DateLayout) != "2023-07-01" {
		t.Fatalf("window = %s", s.Window)
	}
}

func TestTotalOverZeroPartners(t *testing.T) {
	total := Total(nil)
	if total.PartnerCount != 0 || total.ClientCount != 0 || total.TransactionCount != 0 {
		t.Fatalf("counts not zero: %+v", total)
	}
	for _, d := range []decimal.Decimal{total.TotalIn, total.TotalOut, total.TotalCommission, total.TotalBonus, total.TotalFinalBalance} {
		if !d.IsZero() {
			t.Fatalf("expected zero totals, got %+v", total)
		}
	}
}

func TestTotalSumsFields(t *testing.T) {
	a := Summarize(Partner{ID: "a", Commission: dec("10"), Bonus: dec("50")}, []Transaction{
		{Amount: dec("1000"), Type: Incoming, ClientLogin: "x"},
		{Amount: dec("200"), Type: Outgoing},
	})
	b := Summarize(Partner{ID: "b", Commission: dec("0"), Bonus: dec("0")}, []Transaction{
		{Amount: dec("10"), Type: Incoming, ClientLogin: "x"},
	})
	total := Total([]PartnerSummary{a, b})
	if !total.TotalFinalBalance.Equal(dec("760")) || !total.TotalBonus.Equal(dec("50")) {
		t.Fatalf("total = %+v", total)
	}
	// same login under two partners counts twice: clients are partner-scoped
	if total.ClientCount != 2 || total.PartnerCount != 2 || total.TransactionCount != 3 {
		t.Fatalf("counts = %+v", total)
	}
}
