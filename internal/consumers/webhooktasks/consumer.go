package webhooktasks

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/pkg/logger"
)

const consumerName = "webhook-tasks"

// Task is the wire shape of an enqueued webhook reconciliation task.
type Task struct {
	WebhookID uuid.UUID `json:"webhook_id"`
}

type processor interface {
	Process(ctx context.Context, webhookID uuid.UUID) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Consumer drains the webhook task queue and runs the reconciliation
// processor for each audit row.
type Consumer struct {
	processor    processor
	subscription *pubsub.Subscriber
	guard        idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(proc processor, subscription *pubsub.Subscriber, guard idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if proc == nil {
		return nil, errors.New("webhook processor is required")
	}
	if subscription == nil {
		return nil, errors.New("webhook subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		processor:    proc,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked. Malformed messages are
// acked so they cannot poison the queue; processing failures are nacked for
// redelivery (the processor's own retry ceiling bounds them).
func (c *Consumer) handle(ctx context.Context, data []byte) bool {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		c.logg.Error(ctx, "malformed webhook task", err)
		return true
	}
	if task.WebhookID == uuid.Nil {
		c.logg.Error(ctx, "webhook task missing id", errors.New("webhook_id required"))
		return true
	}

	logCtx := c.logg.WithWebhookID(ctx, task.WebhookID.String())

	if c.guard != nil {
		already, err := c.guard.CheckAndMarkProcessed(logCtx, consumerName, task.WebhookID.String())
		if err != nil {
			// Dedup is best effort; the processor's status guard is authoritative.
			c.logg.Warn(logCtx, "webhook task dedupe check failed")
		} else if already {
			c.logg.Info(logCtx, "webhook task already processed")
			return true
		}
	}

	if err := c.processor.Process(logCtx, task.WebhookID); err != nil {
		c.logg.Error(logCtx, "webhook reconciliation failed", err)
		if c.guard != nil {
			_ = c.guard.Delete(logCtx, consumerName, task.WebhookID.String())
		}
		return false
	}
	return true
}
