package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	plog "parceiros/internal/log"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often pending changes are pushed (default: 30s)
	PollInterval time.Duration

	// PushOnStart pushes once at startup even without pending changes.
	PushOnStart bool
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
	}
}

// Pusher pushes the partner list to the sheet.
type Pusher interface {
	Push(ctx context.Context) error
}

// SyncProcessor pushes the partner list on a timer whenever it changed since
// the last successful push. It is a store.ChangeNotifier.
type SyncProcessor struct {
	pusher Pusher
	config SyncProcessorConfig
	dirty  atomic.Bool
	logger *slog.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(pusher Pusher, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		pusher: pusher,
		config: config,
		logger: slog.Default().With(plog.FieldComponent, plog.ComponentSheets),
	}
}

// PartnersChanged marks the list as needing a push.
func (p *SyncProcessor) PartnersChanged(_ context.Context, _ string, _ ...string) {
	p.dirty.Store(true)
}

// Pending reports whether a change is waiting to be pushed.
func (p *SyncProcessor) Pending() bool {
	return p.dirty.Load()
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	if p.config.PushOnStart {
		p.dirty.Store(true)
	}
	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.flush(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// flush pushes when dirty. The flag is cleared before the push so a change
// landing mid-push is picked up by the next tick.
func (p *SyncProcessor) flush(ctx context.Context) {
	if !p.dirty.Swap(false) {
		return
	}
	err := p.pusher.Push(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrSyncInProgress):
		p.logger.DebugContext(ctx, "Sync busy, retrying next tick")
	default:
		p.logger.WarnContext(ctx, "Scheduled push failed", "error", err)
	}
	p.dirty.Store(true)
}
