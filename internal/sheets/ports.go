package sheets

import (
	"context"
	"errors"

	"parceiros/internal/core"
)

// ErrNotConfigured is returned when no spreadsheet has been configured yet.
var ErrNotConfigured = errors.New("google sheets not configured")

// Ports for outbound adapters.
type (
	// Syncer mirrors the whole partner list to a spreadsheet and back.
	Syncer interface {
		// Push overwrites the remote copy with partners.
		Push(ctx context.Context, partners []core.Partner) error
		// Fetch reads the remote copy.
		Fetch(ctx context.Context) ([]core.Partner, error)
	}

	// Target identifies the spreadsheet and the tab holding the partner list.
	Target struct {
		SpreadsheetID string
		SheetID       int64
	}

	// TargetSource resolves the target at call time so configuration changes
	// apply without a restart.
	TargetSource func(ctx context.Context) (Target, error)
)

// StaticTarget always resolves to t.
func StaticTarget(t Target) TargetSource {
	return func(context.Context) (Target, error) {
		if t.SpreadsheetID == "" {
			return Target{}, ErrNotConfigured
		}
		return t, nil
	}
}
