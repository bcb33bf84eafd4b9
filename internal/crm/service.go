package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

// Gateway is the slice of the payment client used to read CRM records.
type Gateway interface {
	ListEntities(ctx context.Context, req *sumit.ListEntitiesRequest) (*sumit.ListEntitiesData, error)
	GetEntity(ctx context.Context, req *sumit.GetEntityRequest) (*sumit.EntityData, error)
}

// Service maintains the local read model of SUMIT CRM records.
type Service struct {
	repo          *Repository
	gateway       Gateway
	stockFolderID int64
	logg          *logger.Logger
	nowFn         func() time.Time
}

// ServiceParams collects the CRM sync dependencies.
type ServiceParams struct {
	Repo          *Repository
	Gateway       Gateway
	StockFolderID int64
	Logger        *logger.Logger
	Now           func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, errors.New("crm repository is required")
	}
	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		repo:          p.Repo,
		gateway:       p.Gateway,
		stockFolderID: p.StockFolderID,
		logg:          p.Logger,
		nowFn:         nowFn,
	}, nil
}

var _ webhooks.CRMApplier = (*Service)(nil)

// ApplyEntityEvent mirrors a CRM webhook into the read model. Events that
// carry properties are applied directly; bare notifications trigger a
// refetch from the gateway.
func (s *Service) ApplyEntityEvent(ctx context.Context, event webhooks.EntityEvent) error {
	now := s.nowFn()

	switch event.Action {
	case "delete", "deleted", "remove":
		if event.EntityID == 0 {
			return errors.New("delete event missing entity id")
		}
		return s.repo.MarkDeleted(ctx, event.FolderID, event.EntityID, now)
	}

	if len(event.Properties) > 0 && event.EntityID != 0 {
		entity := &models.CRMEntity{
			FolderID:   event.FolderID,
			EntityID:   event.EntityID,
			Properties: event.Properties,
			SyncedAt:   now,
		}
		return s.repo.Upsert(ctx, entity)
	}

	if s.gateway != nil && event.FolderID != 0 && event.EntityID != 0 {
		return s.refetch(ctx, event.FolderID, event.EntityID, now)
	}

	// Folder-level notification without a gateway to resolve it: ack and
	// leave it to the next stock sync.
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"folder_id": event.FolderID,
			"entity_id": event.EntityID,
		}), "crm event without payload deferred to folder sync")
	}
	return nil
}

func (s *Service) refetch(ctx context.Context, folderID, entityID int64, now time.Time) error {
	data, err := s.gateway.GetEntity(ctx, &sumit.GetEntityRequest{
		FolderID: folderID,
		EntityID: entityID,
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Gone remotely: reflect that locally.
			return s.repo.MarkDeleted(ctx, folderID, entityID, now)
		}
		return err
	}
	return s.repo.Upsert(ctx, entityFromRemote(data.Entity, now))
}

func entityFromRemote(remote *sumit.Entity, syncedAt time.Time) *models.CRMEntity {
	entity := &models.CRMEntity{
		FolderID: remote.FolderID,
		EntityID: remote.ID,
		SyncedAt: syncedAt,
	}
	if remote.Name != "" {
		entity.Name = &remote.Name
	}
	if len(remote.Properties) > 0 {
		if raw, err := json.Marshal(remote.Properties); err == nil {
			entity.Properties = raw
		}
	}
	return entity
}

// SyncSummary reports a folder sync per record.
type SyncSummary struct {
	Scanned int
	Synced  int
	Failed  int
}

// SyncStockFolder pulls the configured stock folder page by page. Without
// force only records updated since the last sync are requested.
func (s *Service) SyncStockFolder(ctx context.Context, force bool) (SyncSummary, error) {
	if s.gateway == nil {
		return SyncSummary{}, errors.New("payment gateway unavailable")
	}
	if s.stockFolderID == 0 {
		return SyncSummary{}, pkgerrors.New(pkgerrors.CodeValidation, "stock folder is not configured")
	}
	return s.SyncFolder(ctx, s.stockFolderID, force)
}

// SyncFolder pulls every entity in the folder into the read model.
func (s *Service) SyncFolder(ctx context.Context, folderID int64, force bool) (SyncSummary, error) {
	if s.gateway == nil {
		return SyncSummary{}, errors.New("payment gateway unavailable")
	}

	updatedAfter := ""
	if !force {
		since, err := s.repo.LastSyncedAt(ctx, folderID)
		if err != nil {
			return SyncSummary{}, err
		}
		if !since.IsZero() {
			updatedAfter = since.UTC().Format(time.RFC3339)
		}
	}

	now := s.nowFn()
	summary := SyncSummary{}
	var errs error
	page := 1
	for {
		data, err := s.gateway.ListEntities(ctx, &sumit.ListEntitiesRequest{
			FolderID:     folderID,
			PageSize:     100,
			PageNumber:   page,
			UpdatedAfter: updatedAfter,
		})
		if err != nil {
			return summary, multierr.Append(errs, err)
		}

		for i := range data.Entities {
			remote := data.Entities[i]
			summary.Scanned++
			if err := s.repo.Upsert(ctx, entityFromRemote(&remote, now)); err != nil {
				summary.Failed++
				errs = multierr.Append(errs, fmt.Errorf("entity %d/%d: %w", folderID, remote.ID, err))
				continue
			}
			summary.Synced++
		}

		if data.PageCount == 0 || page >= data.PageCount || len(data.Entities) == 0 {
			break
		}
		page++
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"folder_id": folderID,
			"scanned":   summary.Scanned,
			"synced":    summary.Synced,
			"failed":    summary.Failed,
		}), "crm folder sync finished")
	}
	return summary, errs
}
