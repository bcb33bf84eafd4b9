package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	"github.com/sumitpay/billing-backend/pkg/pagination"
)

// Repository owns the subscriptions and transactions tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return errors.New("subscription required")
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) FindSubscriptionByRecurringID(ctx context.Context, recurringID string) (*models.Subscription, error) {
	if recurringID == "" {
		return nil, nil
	}
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("recurring_id = ?", recurringID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListDue returns active subscriptions whose next charge is at or before now,
// oldest due first. Terminal statuses never match.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_charge_at IS NOT NULL AND next_charge_at <= ?",
			enums.SubscriptionStatusActive, now).
		Order("next_charge_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ClaimDueTx reloads the subscription under a row lock so overlapping due
// runs serialize on it. Returns nil when the row no longer qualifies for a
// charge (an overlapping run got there first, or the status moved on).
func (r *Repository) ClaimDueTx(tx *gorm.DB, id uuid.UUID, now time.Time) (*models.Subscription, error) {
	sub, err := r.LockSubscriptionTx(tx, id)
	if err != nil || sub == nil {
		return nil, err
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, nil
	}
	if sub.NextChargeAt == nil || sub.NextChargeAt.After(now) {
		return nil, nil
	}
	return sub, nil
}

// LockSubscriptionTx reloads the row under a lock without the due-window
// check. Used by forced charges and lifecycle transitions.
func (r *Repository) LockSubscriptionTx(tx *gorm.DB, id uuid.UUID) (*models.Subscription, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var sub models.Subscription
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) SaveSubscriptionTx(tx *gorm.DB, sub *models.Subscription) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Save(sub).Error
}

func (r *Repository) CreateTransactionTx(tx *gorm.DB, txn *models.Transaction) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return tx.Create(txn).Error
}

func (r *Repository) FindTransactionByPaymentID(ctx context.Context, paymentID int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *Repository) FindTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	if orderID == "" {
		return nil, nil
	}
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *Repository) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *Repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *Repository) FindTokenByID(ctx context.Context, id uuid.UUID) (*models.PaymentToken, error) {
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

// FindDefaultToken returns the owner's active default vaulted card, if any.
func (r *Repository) FindDefaultToken(ctx context.Context, ownerType, ownerID string) (*models.PaymentToken, error) {
	var token models.PaymentToken
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND is_default = ? AND archived_at IS NULL",
			ownerType, ownerID, true).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// ListSubscriptions pages through subscriptions for the admin surface.
func (r *Repository) ListSubscriptions(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&models.Subscription{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var subs []models.Subscription
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&subs).Error
	return subs, total, err
}

// ListTransactionsBySubscription pages through a subscription's charge
// history newest first, keyed on (created_at, id) so inserts between pages
// never shift rows.
func (r *Repository) ListTransactionsBySubscription(ctx context.Context, subscriptionID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var txns []models.Transaction
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&txns).Error
	return txns, err
}
