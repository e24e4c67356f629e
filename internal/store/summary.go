package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
)

// Summary computes the windowed summary of one partner. Unknown ids return
// (nil, false).
func (s *Store) Summary(ctx context.Context, id string, now time.Time) (*core.PartnerSummary, bool) {
	p, ok := s.Partner(id)
	if !ok {
		return nil, false
	}
	sum := s.summarize(ctx, p, now)
	return &sum, true
}

// Summaries computes every partner's summary in list order.
func (s *Store) Summaries(ctx context.Context, now time.Time) []core.PartnerSummary {
	partners := s.Partners()
	out := make([]core.PartnerSummary, 0, len(partners))
	for _, p := range partners {
		out = append(out, s.summarize(ctx, p, now))
	}
	return out
}

// Total aggregates every partner's summary for the same window.
func (s *Store) Total(ctx context.Context, now time.Time) core.TotalSummary {
	return core.Total(s.Summaries(ctx, now))
}

func (s *Store) summarize(ctx context.Context, p core.Partner, now time.Time) core.PartnerSummary {
	sum, excluded := core.SummarizeAt(p, s.policy, now)
	for _, e := range excluded {
		s.logger.WarnContext(ctx, "Transaction excluded from window",
			"partner_id", e.PartnerID,
			"transaction_id", e.TransactionID,
			"date", e.Date,
			"reason", e.Reason)
	}
	return sum
}

// WindowTransactions returns the partner's transactions inside the current
// window, as used for the window export.
func (s *Store) WindowTransactions(ctx context.Context, id string, now time.Time) ([]core.Transaction, core.Window, bool) {
	p, ok := s.Partner(id)
	if !ok {
		return nil, core.Window{}, false
	}
	w := s.policy.Bounds(now)
	selected, excluded := w.Select(p.Transactions)
	if len(excluded) > 0 {
		s.logger.WarnContext(ctx, "Transactions excluded from export", "partner_id", id, "count", len(excluded))
	}
	return selected, w, true
}

// RecentTransactions returns the partner's transactions newest first,
// optionally limited to one type. A non-nil within keeps only the
// transactions inside that window; unparseable dates never match it.
func (s *Store) RecentTransactions(id string, typ core.TransactionType, within *core.Window) ([]core.Transaction, bool) {
	p, ok := s.Partner(id)
	if !ok {
		return nil, false
	}
	txs := p.Transactions
	if within != nil {
		txs, _ = within.Select(txs)
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if typ != "" && t.Type != typ {
			continue
		}
		out = append(out, t)
	}
	sortNewestFirst(out, func(i int) core.Transaction { return out[i] })
	return out, true
}

// ClientActivity is one client's share of a partner's windowed movement.
type ClientActivity struct {
	ClientID         string          `json:"clientId,omitempty"`
	Name             string          `json:"name"`
	Login            string          `json:"login,omitempty"`
	TransactionCount int             `json:"transactionCount"`
	TotalIn          decimal.Decimal `json:"totalIn"`
	TotalOut         decimal.Decimal `json:"totalOut"`
}

// unattributedClient names the bucket for transactions with no client data.
const unattributedClient = "Cliente"

// ClientBreakdown groups the partner's transactions inside the current
// window by client, busiest client first. Transactions without client
// fields fall back to a quoted name in the description, then to a single
// unattributed bucket.
func (s *Store) ClientBreakdown(ctx context.Context, id string, now time.Time) ([]ClientActivity, core.Window, bool) {
	p, ok := s.Partner(id)
	if !ok {
		return nil, core.Window{}, false
	}
	txs, w, _ := s.WindowTransactions(ctx, id, now)

	known := make(map[string]core.Client, len(p.Clients))
	for _, c := range p.Clients {
		known[c.ID] = c
	}

	index := make(map[string]int)
	var out []ClientActivity
	for _, t := range txs {
		key := t.ClientKey()
		name := t.ClientName
		if key == "" {
			if q := quotedName(t.Description); q != "" {
				name = q
				key = "name:" + q
			} else {
				name = unattributedClient
			}
		}
		i, seen := index[key]
		if !seen {
			a := ClientActivity{ClientID: t.ClientID, Name: name, Login: t.ClientLogin}
			if c, ok := known[t.ClientID]; ok {
				a.Login = c.Login
				if c.Name != "" {
					a.Name = c.Name
				}
			}
			out = append(out, a)
			i = len(out) - 1
			index[key] = i
		}
		a := &out[i]
		if a.Name == "" {
			a.Name = name
		}
		if a.Login == "" {
			a.Login = t.ClientLogin
		}
		a.TransactionCount++
		switch t.Type {
		case core.Incoming:
			a.TotalIn = a.TotalIn.Add(t.Amount)
		case core.Outgoing:
			a.TotalOut = a.TotalOut.Add(t.Amount)
		}
	}
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = out[i].Login
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TransactionCount > out[b].TransactionCount
	})
	return out, w, true
}

// quotedName extracts the first double-quoted run of a description.
func quotedName(desc string) string {
	start := strings.IndexByte(desc, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(desc[start+1:], '"')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(desc[start+1 : start+1+end])
}

// sortNewestFirst orders by date then time, descending. Unparseable dates
// sink to the end and keep their relative order.
func sortNewestFirst[T any](items []T, at func(int) core.Transaction) {
	keys := make([]string, len(items))
	for i := range items {
		t := at(i)
		d, err := core.ParseDate(t.Date)
		if err != nil {
			continue
		}
		keys[i] = d.Format(core.DateLayout) + " " + strings.TrimSpace(t.Time)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] > keys[idx[b]]
	})
	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}
