package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parceiros/internal/storage"
)

// SheetsConfig is the spreadsheet the partner list syncs with.
type SheetsConfig struct {
	SpreadsheetID string `json:"spreadsheetId"`
	SheetID       int64  `json:"sheetId"`
}

// Session is the persisted login flag. There is no token: the flag is the
// whole of it.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	LastLogin     time.Time `json:"lastLogin,omitempty"`
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// LastSync returns the time of the last successful sheet sync, if any.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	var t time.Time
	ok, err := s.getJSON(ctx, KeyLastSync, &t)
	return t, ok, err
}

func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	return s.putJSON(ctx, KeyLastSync, t.UTC())
}

// SheetsConfig returns the stored sheet config, or the zero config.
func (s *Store) SheetsConfig(ctx context.Context) (SheetsConfig, error) {
	var cfg SheetsConfig
	_, err := s.getJSON(ctx, KeySheetsConfig, &cfg)
	return cfg, err
}

func (s *Store) SetSheetsConfig(ctx context.Context, cfg SheetsConfig) error {
	if cfg.SheetID < 0 {
		return fmt.Errorf("invalid sheet id %d", cfg.SheetID)
	}
	return s.putJSON(ctx, KeySheetsConfig, cfg)
}

// SetAuthenticated stores the login flag. at is recorded as the last login
// when authenticated is true.
func (s *Store) SetAuthenticated(ctx context.Context, authenticated bool, at time.Time) error {
	if err := s.putJSON(ctx, KeyAuthenticated, authenticated); err != nil {
		return err
	}
	if authenticated {
		return s.putJSON(ctx, KeyLastLogin, at.UTC())
	}
	return nil
}

func (s *Store) Session(ctx context.Context) (Session, error) {
	var sess Session
	if _, err := s.getJSON(ctx, KeyAuthenticated, &sess.Authenticated); err != nil {
		return Session{}, err
	}
	if _, err := s.getJSON(ctx, KeyLastLogin, &sess.LastLogin); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) IsAuthenticated(ctx context.Context) bool {
	sess, err := s.Session(ctx)
	return err == nil && sess.Authenticated
}
