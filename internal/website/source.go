// Package website is the port to the external partner site: a login, a
// partner listing and a per-partner CSV download.
package website

import (
	"context"
	"errors"

	"parceiros/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid website credentials")
	ErrNotLoggedIn        = errors.New("not logged in to website")
)

type Source interface {
	// Login reports whether the site accepted the credentials. A transport
	// failure is an error; rejected credentials are (false, nil).
	Login(ctx context.Context, username, password string) (bool, error)
	// FetchPartners lists the partners the site knows about.
	FetchPartners(ctx context.Context) ([]core.Partner, error)
	// DownloadCSV returns the partner's transaction CSV export.
	DownloadCSV(ctx context.Context, partner core.Partner) (string, error)
}
