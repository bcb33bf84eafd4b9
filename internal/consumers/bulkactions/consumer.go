package bulkactions

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/internal/bulk"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const consumerName = "bulk-actions"

type executor interface {
	Execute(ctx context.Context, batch bulk.Batch) bulk.BatchSummary
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Consumer drains the bulk action queue. Every message is one batch; the
// executor isolates record failures, so a delivered batch is always acked.
type Consumer struct {
	executor     executor
	subscription *pubsub.Subscriber
	guard        idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(exec executor, subscription *pubsub.Subscriber, guard idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if exec == nil {
		return nil, errors.New("bulk executor is required")
	}
	if subscription == nil {
		return nil, errors.New("bulk subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		executor:     exec,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		c.handle(ctx, msg.Data)
		msg.Ack()
	})
}

func (c *Consumer) handle(ctx context.Context, data []byte) {
	var batch bulk.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		c.logg.Error(ctx, "malformed bulk batch", err)
		return
	}
	if len(batch.Records) == 0 {
		c.logg.Warn(ctx, "bulk batch carries no records")
		return
	}
	if batch.BatchID == uuid.Nil {
		batch.BatchID = uuid.New()
	}

	logCtx := c.logg.WithField(ctx, "batch_id", batch.BatchID.String())

	if c.guard != nil {
		// A redelivered batch would re-run already-completed records; the
		// underlying actions are idempotent but the gateway calls are not free.
		already, err := c.guard.CheckAndMarkProcessed(logCtx, consumerName, batch.BatchID.String())
		if err != nil {
			c.logg.Warn(logCtx, "bulk batch dedupe check failed")
		} else if already {
			c.logg.Info(logCtx, "bulk batch already executed")
			return
		}
	}

	summary := c.executor.Execute(logCtx, batch)
	if summary.Failed > 0 {
		c.logg.Warn(c.logg.WithFields(logCtx, map[string]any{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		}), "bulk batch finished with failures")
	}
}
