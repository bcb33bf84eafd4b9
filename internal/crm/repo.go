package crm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumitpay/billing-backend/pkg/db/models"
)

// Repository owns the crm_entities read model.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes the entity snapshot, replacing any previous one for the
// folder/entity pair.
func (r *Repository) Upsert(ctx context.Context, entity *models.CRMEntity) error {
	if entity == nil {
		return errors.New("crm entity required")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "folder_id"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "properties", "deleted_at", "synced_at", "updated_at",
		}),
	}).Create(entity).Error
}

func (r *Repository) Find(ctx context.Context, folderID, entityID int64) (*models.CRMEntity, error) {
	var entity models.CRMEntity
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND entity_id = ?", folderID, entityID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

func (r *Repository) MarkDeleted(ctx context.Context, folderID, entityID int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CRMEntity{}).
		Where("folder_id = ? AND entity_id = ?", folderID, entityID).
		Updates(map[string]any{
			"deleted_at": at,
			"synced_at":  at,
		}).Error
}

func (r *Repository) ListByFolder(ctx context.Context, folderID int64, includeDeleted bool) ([]models.CRMEntity, error) {
	query := r.db.WithContext(ctx).Where("folder_id = ?", folderID)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	var rows []models.CRMEntity
	err := query.Order("entity_id ASC").Find(&rows).Error
	return rows, err
}

// LastSyncedAt returns the newest sync timestamp in the folder, zero when the
// folder has never been synced.
func (r *Repository) LastSyncedAt(ctx context.Context, folderID int64) (time.Time, error) {
	var row models.CRMEntity
	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("synced_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return row.SyncedAt, nil
}
