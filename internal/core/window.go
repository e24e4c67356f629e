package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	WindowTrailing WindowKind = "trailing"
	WindowWeek     WindowKind = "week"

	DefaultWindowDays = 7
)

type (
	WindowKind string

	// WindowPolicy decides the reporting window for a reference time.
	WindowPolicy struct {
		Kind WindowKind
		Days int // trailing only
	}

	// Window is an inclusive range of calendar days. With OpenEnd set, End is
	// only the reference day and later dates are inside too.
	Window struct {
		Start   time.Time `json:"start"`
		End     time.Time `json:"end"`
		OpenEnd bool      `json:"openEnd,omitempty"`
	}

	// Exclusion describes a transaction the window could not place.
	Exclusion struct {
		TransactionID string `json:"transactionId"`
		PartnerID     string `json:"partnerId"`
		Date          string `json:"date"`
		Reason        string `json:"reason"`
	}
)

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{Kind: WindowTrailing, Days: DefaultWindowDays}
}

func TrailingDays(days int) WindowPolicy {
	return WindowPolicy{Kind: WindowTrailing, Days: days}
}

func CurrentWeek() WindowPolicy {
	return WindowPolicy{Kind: WindowWeek}
}

// ParseWindowPolicy builds a policy from configuration values.
func ParseWindowPolicy(kind string, days int) (WindowPolicy, error) {
	switch WindowKind(strings.ToLower(strings.TrimSpace(kind))) {
	case WindowTrailing, "":
		if days < 0 {
			return WindowPolicy{}, fmt.Errorf("invalid window days %d: must not be negative", days)
		}
		return TrailingDays(days), nil
	case WindowWeek:
		return CurrentWeek(), nil
	default:
		return WindowPolicy{}, fmt.Errorf("invalid window policy %q: must be trailing or week", kind)
	}
}

func (p WindowPolicy) String() string {
	if p.Kind == WindowWeek {
		return string(WindowWeek)
	}
	return fmt.Sprintf("%s:%dd", WindowTrailing, p.Days)
}

// Bounds returns the window containing now. Trailing starts Days calendar
// days before today and has no upper bound, so future-dated rows count; week
// covers Monday through Sunday.
func (p WindowPolicy) Bounds(now time.Time) Window {
	today := CivilDate(now)
	if p.Kind == WindowWeek {
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		start := today.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 6)}
	}
	return Window{Start: today.AddDate(0, 0, -p.Days), End: today, OpenEnd: true}
}

// Contains reports whether the calendar day of d lies in the window.
func (w Window) Contains(d time.Time) bool {
	d = CivilDate(d)
	return !d.Before(w.Start) && (w.OpenEnd || !d.After(w.End))
}

// Select keeps the transactions dated inside the window, preserving order.
// Transactions whose date cannot be parsed are left out and reported.
func (w Window) Select(txs []Transaction) ([]Transaction, []Exclusion) {
	selected := make([]Transaction, 0, len(txs))
	var excluded []Exclusion
	for _, t := range txs {
		d, err := ParseDate(t.Date)
		if err != nil {
			excluded = append(excluded, Exclusion{
				TransactionID: t.ID,
				PartnerID:     t.PartnerID,
				Date:          t.Date,
				Reason:        "unparseable date",
			})
			continue
		}
		if w.Contains(d) {
			selected = append(selected, t)
		}
	}
	return selected, excluded
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
