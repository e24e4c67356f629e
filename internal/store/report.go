package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
)

// ReportFilter narrows the cross-partner transaction report. Zero values do
// not filter. From and To are inclusive calendar days.
type ReportFilter struct {
	Search    string
	PartnerID string
	Type      core.TransactionType
	From      time.Time
	To        time.Time
}

type ReportRow struct {
	core.Transaction
	PartnerName     string `json:"partnerName"`
	PartnerUsername string `json:"partnerUsername"`
}

type Report struct {
	Rows     []ReportRow     `json:"rows"`
	Count    int             `json:"count"`
	TotalIn  decimal.Decimal `json:"totalIn"`
	TotalOut decimal.Decimal `json:"totalOut"`
	Net      decimal.Decimal `json:"net"`
}

// Report lists every partner's transactions matching f, newest first, with
// the incoming and outgoing totals of the matching set.
func (s *Store) Report(f ReportFilter) Report {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	from, to := f.From, f.To
	if !from.IsZero() {
		from = core.CivilDate(from)
	}
	if !to.IsZero() {
		to = core.CivilDate(to)
	}

	rep := Report{Rows: []ReportRow{}, TotalIn: decimal.Zero, TotalOut: decimal.Zero}
	for _, p := range s.Partners() {
		if f.PartnerID != "" && p.ID != f.PartnerID {
			continue
		}
		for _, t := range p.Transactions {
			if f.Type != "" && t.Type != f.Type {
				continue
			}
			if !from.IsZero() || !to.IsZero() {
				d, err := core.ParseDate(t.Date)
				if err != nil {
					continue
				}
				if !from.IsZero() && d.Before(from) {
					continue
				}
				if !to.IsZero() && d.After(to) {
					continue
				}
			}
			if search != "" && !matches(search, t.ClientName, t.ClientLogin, t.Description, p.Name, p.Username) {
				continue
			}
			rep.Rows = append(rep.Rows, ReportRow{Transaction: t, PartnerName: p.Name, PartnerUsername: p.Username})
			if t.Type == core.Incoming {
				rep.TotalIn = rep.TotalIn.Add(t.Amount)
			} else {
				rep.TotalOut = rep.TotalOut.Add(t.Amount)
			}
		}
	}
	sortNewestFirst(rep.Rows, func(i int) core.Transaction { return rep.Rows[i].Transaction })
	rep.Count = len(rep.Rows)
	rep.Net = rep.TotalIn.Sub(rep.TotalOut)
	return rep
}

func matches(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
