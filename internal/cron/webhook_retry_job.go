package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const (
	defaultWebhookRetryLimit = 100
	defaultWebhookMaxRetries = 5
	defaultWebhookPendingAge = 10 * time.Minute
)

type webhookRetryRepo interface {
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error)
	ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]models.WebhookEvent, error)
}

type webhookTaskQueue interface {
	PublishWebhookTask(ctx context.Context, webhookID uuid.UUID) error
}

// WebhookRetryJobParams configures the failed-webhook retry job.
type WebhookRetryJobParams struct {
	Logger     *logger.Logger
	Repository webhookRetryRepo
	Queue      webhookTaskQueue
	MaxRetries int
	Limit      int
	PendingAge time.Duration
}

// NewWebhookRetryJob builds the job that re-enqueues failed and stuck
// webhook rows for another processing attempt.
func NewWebhookRetryJob(params WebhookRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("task queue required")
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultWebhookMaxRetries
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultWebhookRetryLimit
	}
	pendingAge := params.PendingAge
	if pendingAge <= 0 {
		pendingAge = defaultWebhookPendingAge
	}
	return &webhookRetryJob{
		logg:       params.Logger,
		repo:       params.Repository,
		queue:      params.Queue,
		maxRetries: maxRetries,
		limit:      limit,
		pendingAge: pendingAge,
	}, nil
}

type webhookRetryJob struct {
	logg       *logger.Logger
	repo       webhookRetryRepo
	queue      webhookTaskQueue
	maxRetries int
	limit      int
	pendingAge time.Duration
}

func (j *webhookRetryJob) Name() string { return "webhook-retry" }

func (j *webhookRetryJob) Run(ctx context.Context) error {
	failed, err := j.repo.ListRetryable(ctx, j.maxRetries, j.limit)
	if err != nil {
		return fmt.Errorf("list retryable webhooks: %w", err)
	}
	// Pending rows older than the age threshold were accepted but never
	// picked up (enqueue failed or the worker died mid-task).
	stuck, err := j.repo.ListPendingOlderThan(ctx, j.pendingAge, j.limit)
	if err != nil {
		return fmt.Errorf("list stuck webhooks: %w", err)
	}

	var errs error
	enqueued := 0
	for _, event := range append(failed, stuck...) {
		if err := j.queue.PublishWebhookTask(ctx, event.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("webhook %s: %w", event.ID, err))
			continue
		}
		enqueued++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"failed":   len(failed),
		"stuck":    len(stuck),
		"enqueued": enqueued,
	})
	j.logg.Info(logCtx, "webhook retry sweep complete")
	return errs
}
