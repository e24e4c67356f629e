// Package memory is the in-process Sheets double. It keeps the encoded tabs so
// a Push/Fetch round trip goes through the same row codec as the Google adapter.
package memory

import (
	"context"
	"sync"
	"time"

	"parceiros/internal/core"
	ports "parceiros/internal/sheets"
)

var _ ports.Syncer = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tables ports.Tables
	delay  time.Duration
	err    error
	pushes int
}

type Option func(*Store)

// WithDelay makes every call take d, or less if the context ends first.
func WithDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// WithFailure makes every call fail with err.
func WithFailure(err error) Option {
	return func(s *Store) { s.err = err }
}

// WithPartners seeds the remote copy.
func WithPartners(partners []core.Partner) Option {
	return func(s *Store) { s.tables = ports.Encode(partners) }
}

func New(opts ...Option) *Store {
	s := &Store{tables: ports.Encode(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFailure changes the injected failure; nil clears it.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Pushes returns the number of successful pushes.
func (s *Store) Pushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes
}

func (s *Store) Push(ctx context.Context, partners []core.Partner) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tables = ports.Encode(partners)
	s.pushes++
	return nil
}

func (s *Store) Fetch(ctx context.Context) ([]core.Partner, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return ports.Decode(s.tables)
}

func (s *Store) wait(ctx context.Context) error {
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
