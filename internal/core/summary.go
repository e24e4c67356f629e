package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartnerSummary is derived from a windowed set of transactions and never stored.
type PartnerSummary struct {
	PartnerID        string          `json:"partnerId"`
	Name             string          `json:"name"`
	Username         string          `json:"username"`
	Active           bool            `json:"active"`
	Commission       decimal.Decimal `json:"commission"`
	Bonus            decimal.Decimal `json:"bonus"`
	TotalIn          decimal.Decimal `json:"totalIn"`
	TotalOut         decimal.Decimal `json:"totalOut"`
	CommissionValue  decimal.Decimal `json:"commissionValue"`
	FinalBalance     decimal.Decimal `json:"finalBalance"`
	ClientCount      int             `json:"clientCount"`
	TransactionCount int             `json:"transactionCount"`
	Window           Window          `json:"window"`
}

// TotalSummary aggregates every partner summary for the same window.
type TotalSummary struct {
	TotalIn           decimal.Decimal `json:"totalIn"`
	TotalOut          decimal.Decimal `json:"totalOut"`
	TotalCommission   decimal.Decimal `json:"totalCommission"`
	TotalBonus        decimal.Decimal `json:"totalBonus"`
	TotalFinalBalance decimal.Decimal `json:"totalFinalBalance"`
	ClientCount       int             `json:"clientCount"`
	TransactionCount  int             `json:"transactionCount"`
	PartnerCount      int             `json:"partnerCount"`
}

// Summarize reduces already windowed transactions with the partner's
// commission and bonus. No rounding is applied.
func Summarize(p Partner, windowed []Transaction) PartnerSummary {
	totalIn, totalOut := decimal.Zero, decimal.Zero
	clients := make(map[string]struct{})
	for _, t := range windowed {
		switch t.Type {
		case Incoming:
			totalIn = totalIn.Add(t.Amount)
		case Outgoing:
			totalOut = totalOut.Add(t.Amount)
		}
		if key := t.ClientKey(); key != "" {
			clients[key] = struct{}{}
		}
	}

	commissionValue := totalIn.Mul(p.Commission).Shift(-2)
	return PartnerSummary{
		PartnerID:        p.ID,
		Name:             p.Name,
		Username:         p.Username,
		Active:           p.Active,
		Commission:       p.Commission,
		Bonus:            p.Bonus,
		TotalIn:          totalIn,
		TotalOut:         totalOut,
		CommissionValue:  commissionValue,
		FinalBalance:     totalIn.Sub(totalOut).Sub(commissionValue).Add(p.Bonus),
		ClientCount:      len(clients),
		TransactionCount: len(windowed),
	}
}

// SummarizeAt windows the partner's transactions with policy at now and
// summarizes them. Exclusions are returned for the caller to log.
func SummarizeAt(p Partner, policy WindowPolicy, now time.Time) (PartnerSummary, []Exclusion) {
	w := policy.Bounds(now)
	selected, excluded := w.Select(p.Transactions)
	s := Summarize(p, selected)
	s.Window = w
	return s, excluded
}

// Total sums per-partner summaries. Clients are scoped to their partner, so
// the distinct client count is the number of distinct (partner, client) pairs,
// which is the sum of the per-partner counts.
func Total(summaries []PartnerSummary) TotalSummary {
	total := TotalSummary{
		TotalIn:           decimal.Zero,
		TotalOut:          decimal.Zero,
		TotalCommission:   decimal.Zero,
		TotalBonus:        decimal.Zero,
		TotalFinalBalance: decimal.Zero,
		PartnerCount:      len(summaries),
	}
	for _, s := range summaries {
		total.TotalIn = total.TotalIn.Add(s.TotalIn)
		total.TotalOut = total.TotalOut.Add(s.TotalOut)
		total.TotalCommission = total.TotalCommission.Add(s.CommissionValue)
		total.TotalBonus = total.TotalBonus.Add(s.Bonus)
		total.TotalFinalBalance = total.TotalFinalBalance.Add(s.FinalBalance)
		total.ClientCount += s.ClientCount
		total.TransactionCount += s.TransactionCount
	}
	return total
}
