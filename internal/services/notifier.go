package services

import (
	"context"
	"log/slog"
	"time"

	"parceiros/internal/amqp"
	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

// Publisher sends partner change messages to the broker.
type Publisher interface {
	PublishPartnerSync(ctx context.Context, msg *amqp.PartnerSyncMessage) error
}

// ChangePublisher forwards committed store changes to the broker in the
// background. A publish failure is logged, never returned to the writer.
type ChangePublisher struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

var _ store.ChangeNotifier = (*ChangePublisher)(nil)

func NewChangePublisher(p Publisher) *ChangePublisher {
	return &ChangePublisher{
		publisher: p,
		timeout:   10 * time.Second,
		logger:    slog.Default().With(plog.FieldComponent, plog.ComponentAMQP),
	}
}

func (c *ChangePublisher) PartnersChanged(ctx context.Context, reason string, partnerIDs ...string) {
	if c.publisher == nil {
		return
	}
	msg := amqp.NewPartnerSyncMessage(reason, partnerIDs...)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	go func() {
		defer cancel()
		if err := c.publisher.PublishPartnerSync(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "Failed to publish partner change", "reason", reason, "error", err)
		}
	}()
}

// Notifiers fans a change out to several notifiers in order.
type Notifiers []store.ChangeNotifier

func (n Notifiers) PartnersChanged(ctx context.Context, reason string, partnerIDs ...string) {
	for _, x := range n {
		if x != nil {
			x.PartnersChanged(ctx, reason, partnerIDs...)
		}
	}
}
