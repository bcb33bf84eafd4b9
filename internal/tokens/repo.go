package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db/models"
)

// Repository owns the payment_tokens vault table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, token *models.PaymentToken) error {
	if token == nil {
		return errors.New("payment token required")
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *Repository) Save(ctx context.Context, token *models.PaymentToken) error {
	return r.db.WithContext(ctx).Save(token).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentToken, error) {
	var token models.PaymentToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *Repository) FindByToken(ctx context.Context, token string) (*models.PaymentToken, error) {
	if token == "" {
		return nil, nil
	}
	var row models.PaymentToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByGatewayID(ctx context.Context, gatewayID int64) (*models.PaymentToken, error) {
	var row models.PaymentToken
	err := r.db.WithContext(ctx).Where("gateway_id = ?", gatewayID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerType, ownerID string) ([]models.PaymentToken, error) {
	var rows []models.PaymentToken
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND archived_at IS NULL", ownerType, ownerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaymentToken{}).Error
}

// ClearDefaultTx unsets every default flag for the owner. Runs inside the
// caller's transaction so the one-default invariant holds across the swap.
func (r *Repository) ClearDefaultTx(tx *gorm.DB, ownerType, ownerID string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.PaymentToken{}).
		Where("owner_type = ? AND owner_id = ? AND is_default = ?", ownerType, ownerID, true).
		Update("is_default", false).Error
}

func (r *Repository) SetDefaultTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.PaymentToken{}).
		Where("id = ?", id).
		Update("is_default", true).Error
}

func (r *Repository) HasDefault(ctx context.Context, ownerType, ownerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentToken{}).
		Where("owner_type = ? AND owner_id = ? AND is_default = ? AND archived_at IS NULL",
			ownerType, ownerID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Archive(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentToken{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"archived_at": at,
			"is_default":  false,
		}).Error
}
