package worker

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parceiros/internal/amqp"
	"parceiros/internal/core"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
)

// Store is the part of the partner store the worker needs.
type Store interface {
	Load(ctx context.Context) error
	Partners() []core.Partner
	LastSync(ctx context.Context) (time.Time, bool, error)
}

// SyncWorker pushes the partner list to Google Sheets when a change message
// arrives. The list is reloaded from shared storage first since the API
// process is the writer.
type SyncWorker struct {
	store  Store
	pusher services.Pusher
	logger *slog.Logger

	mu     sync.Mutex
	pushed [sha256.Size]byte
}

func NewSyncWorker(store Store, pusher services.Pusher) *SyncWorker {
	return &SyncWorker{
		store:  store,
		pusher: pusher,
		logger: slog.Default().With(plog.FieldComponent, plog.ComponentWorker),
	}
}

// HandleSyncMessage processes a single partner sync message from AMQP.
// Messages older than the last successful push are already covered and
// skipped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PartnerSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		"reason", msg.Reason,
		"partner_ids", msg.PartnerIDs,
		"timestamp", msg.Timestamp)

	last, ok, err := w.store.LastSync(ctx)
	if err != nil {
		return fmt.Errorf("read last sync: %w", err)
	}
	if ok && !msg.Timestamp.IsZero() && msg.Timestamp.Before(last) {
		w.logger.InfoContext(ctx, "Change already synced, skipping", "last_sync", last)
		return nil
	}
	return w.sync(ctx)
}

// StartupSync pushes once at worker start, covering messages lost while the
// worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Running startup sync")
	return w.sync(ctx)
}

// PeriodicSync reloads the partner list and pushes only when it differs from
// the last list this worker pushed. It catches changes whose message was lost.
func (w *SyncWorker) PeriodicSync(ctx context.Context) (bool, error) {
	if err := w.store.Load(ctx); err != nil {
		return false, fmt.Errorf("reload partners: %w", err)
	}
	sum, err := fingerprint(w.store.Partners())
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	same := sum == w.pushed
	w.mu.Unlock()
	if same {
		return false, nil
	}
	w.logger.InfoContext(ctx, "Partner list changed since last push")
	return true, w.push(ctx, sum)
}

func (w *SyncWorker) sync(ctx context.Context) error {
	if err := w.store.Load(ctx); err != nil {
		return fmt.Errorf("reload partners: %w", err)
	}
	sum, err := fingerprint(w.store.Partners())
	if err != nil {
		return err
	}
	return w.push(ctx, sum)
}

func (w *SyncWorker) push(ctx context.Context, sum [sha256.Size]byte) error {
	if err := w.pusher.Push(ctx); err != nil {
		return fmt.Errorf("push to sheets: %w", err)
	}
	w.mu.Lock()
	w.pushed = sum
	w.mu.Unlock()
	return nil
}

func fingerprint(partners []core.Partner) ([sha256.Size]byte, error) {
	b, err := json.Marshal(partners)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("fingerprint partners: %w", err)
	}
	return sha256.Sum256(b), nil
}
