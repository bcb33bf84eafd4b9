package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db/models"
)

// Repository owns the documents table and its subscription join rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(tx *gorm.DB, doc *models.Document, subscriptionIDs ...uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if err := tx.Create(doc).Error; err != nil {
		return err
	}
	for _, subscriptionID := range subscriptionIDs {
		err := tx.Exec(
			"INSERT INTO document_subscriptions (document_id, subscription_id) VALUES (?, ?)",
			doc.ID, subscriptionID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) FindByRemoteID(ctx context.Context, remoteID int64) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("document_id = ?", remoteID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) Save(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *Repository) MarkEmailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"emailed":    true,
			"emailed_at": at,
		}).Error
}

// ListFilter narrows a document scan.
type ListFilter struct {
	CustomerID   *int64
	CreatedAfter *time.Time
	DraftsOnly   bool
	Limit        int
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.DraftsOnly {
		query = query.Where("is_draft = ?", true)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	var docs []models.Document
	err := query.Order("created_at ASC").Limit(limit).Find(&docs).Error
	return docs, err
}
