// Package fake is an in-process website.Source with canned data, latency and
// failure injection.
package fake

import (
	"context"
	"strings"
	"sync"
	"time"

	"parceiros/internal/core"
	"parceiros/internal/website"
)

var _ website.Source = (*Site)(nil)

type Site struct {
	mu       sync.Mutex
	username string
	password string
	partners []core.Partner
	csv      map[string]string
	delay    time.Duration
	err      error
	loggedIn bool

	downloads int
}

type Option func(*Site)

func WithCredentials(username, password string) Option {
	return func(s *Site) { s.username, s.password = username, password }
}

func WithPartners(partners ...core.Partner) Option {
	return func(s *Site) { s.partners = append(s.partners, partners...) }
}

// WithCSV sets the export returned for the partner with username.
func WithCSV(username, csv string) Option {
	return func(s *Site) { s.csv[strings.ToLower(username)] = csv }
}

func WithDelay(d time.Duration) Option {
	return func(s *Site) { s.delay = d }
}

func WithFailure(err error) Option {
	return func(s *Site) { s.err = err }
}

// New returns a site accepting any credentials unless WithCredentials is set.
func New(opts ...Option) *Site {
	s := &Site{csv: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Downloads returns how many CSV exports were served.
func (s *Site) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

func (s *Site) Login(ctx context.Context, username, password string) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	ok := s.username == "" || (username == s.username && password == s.password)
	s.loggedIn = ok
	return ok, nil
}

func (s *Site) FetchPartners(ctx context.Context) ([]core.Partner, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if !s.loggedIn {
		return nil, website.ErrNotLoggedIn
	}
	out := make([]core.Partner, len(s.partners))
	copy(out, s.partners)
	return out, nil
}

// DownloadCSV returns the configured export, or a header-only CSV.
func (s *Site) DownloadCSV(ctx context.Context, p core.Partner) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if !s.loggedIn {
		return "", website.ErrNotLoggedIn
	}
	s.downloads++
	if csv, ok := s.csv[strings.ToLower(p.Username)]; ok {
		return csv, nil
	}
	return "date,description,amount,type\n", nil
}

func (s *Site) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
