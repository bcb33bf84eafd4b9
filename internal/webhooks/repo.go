package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
)

// Repository owns the webhook_events audit table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists the write-ahead audit record. The row must exist before
// any processing runs.
func (r *Repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	if event == nil {
		return errors.New("webhook event required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// MarkProcessed moves the audit row to its terminal success state.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.WebhookStatusProcessed,
			"processed_at":  now,
			"error_message": nil,
		}).Error
}

// MarkFailed records a processing failure and bumps the retry counter.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.WebhookStatusFailed,
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + 1"),
		}).Error
}

// MarkSignatureUnverified flags the row without touching its status.
func (r *Repository) MarkSignatureUnverified(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("signature_verified", false).Error
}

// ListRetryable returns failed events still under the retry cap, oldest first.
func (r *Repository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", enums.WebhookStatusFailed, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListPendingOlderThan returns pending events whose task was likely lost.
func (r *Repository) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-age)
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.WebhookStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
