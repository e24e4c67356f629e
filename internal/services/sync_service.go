package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parceiros/internal/core"
	"parceiros/internal/sheets"
)

type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncSyncing SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

// DefaultSettleAfter is how long a success or error stays visible before the
// status reads idle again.
const DefaultSettleAfter = 5 * time.Second

var ErrSyncInProgress = errors.New("a sync is already in progress")

// SyncStatus is the snapshot shown by the status display.
type SyncStatus struct {
	State     SyncState  `json:"status"`
	Message   string     `json:"message,omitempty"`
	Operation string     `json:"operation,omitempty"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
}

// PartnerStore is the part of the store the sync needs.
type PartnerStore interface {
	Partners() []core.Partner
	ReplacePartners(ctx context.Context, partners []core.Partner) error
	LastSync(ctx context.Context) (time.Time, bool, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// SyncService moves the partner list to and from the spreadsheet, one
// operation at a time, and tracks the outcome.
type SyncService struct {
	store  PartnerStore
	sheets sheets.Syncer
	now    func() time.Time
	settle time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	state      SyncState
	message    string
	operation  string
	finishedAt time.Time
}

type SyncOption func(*SyncService)

func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

func WithSettleAfter(d time.Duration) SyncOption {
	return func(s *SyncService) { s.settle = d }
}

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) { s.logger = l }
}

func NewSyncService(store PartnerStore, syncer sheets.Syncer, opts ...SyncOption) *SyncService {
	s := &SyncService{
		store:  store,
		sheets: syncer,
		now:    time.Now,
		settle: DefaultSettleAfter,
		logger: slog.Default(),
		state:  SyncIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current state. A finished sync settles back to idle
// once the settle period has passed.
func (s *SyncService) Status(ctx context.Context) SyncStatus {
	s.mu.Lock()
	st := SyncStatus{State: s.state, Message: s.message, Operation: s.operation}
	if (st.State == SyncSuccess || st.State == SyncError) && s.now().Sub(s.finishedAt) >= s.settle {
		s.state, s.message, s.operation = SyncIdle, "", ""
		st = SyncStatus{State: SyncIdle}
	}
	s.mu.Unlock()

	if t, ok, err := s.store.LastSync(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to read last sync time", "error", err)
	} else if ok {
		st.LastSync = &t
	}
	return st
}

// Push writes the whole partner list to the sheet.
func (s *SyncService) Push(ctx context.Context) error {
	if err := s.begin("push", "pushing partners to the sheet"); err != nil {
		return err
	}
	partners := s.store.Partners()
	err := s.sheets.Push(ctx, partners)
	if err == nil {
		err = s.store.SetLastSync(ctx, s.now())
	}
	s.finish(ctx, "push", err, fmt.Sprintf("%d partners pushed", len(partners)))
	return err
}

// Pull replaces the local partner list with the sheet's.
func (s *SyncService) Pull(ctx context.Context) (int, error) {
	if err := s.begin("pull", "pulling partners from the sheet"); err != nil {
		return 0, err
	}
	partners, err := s.sheets.Fetch(ctx)
	if err == nil {
		err = s.store.ReplacePartners(ctx, partners)
	}
	if err == nil {
		err = s.store.SetLastSync(ctx, s.now())
	}
	s.finish(ctx, "pull", err, fmt.Sprintf("%d partners pulled", len(partners)))
	if err != nil {
		return 0, err
	}
	return len(partners), nil
}

func (s *SyncService) begin(op, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SyncSyncing {
		return ErrSyncInProgress
	}
	s.state, s.message, s.operation = SyncSyncing, message, op
	return nil
}

func (s *SyncService) finish(ctx context.Context, op string, err error, okMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = s.now()
	if err != nil {
		s.state, s.message = SyncError, err.Error()
		s.logger.ErrorContext(ctx, "Sync failed", "operation", op, "error", err)
		return
	}
	s.state, s.message = SyncSuccess, okMessage
	s.logger.InfoContext(ctx, "Sync completed", "operation", op, "message", okMessage)
}
