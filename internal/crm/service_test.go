package crm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

func setupCRMTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS crm_entities (
  folder_id INTEGER NOT NULL,
  entity_id INTEGER NOT NULL,
  name TEXT,
  properties TEXT,
  deleted_at DATETIME,
  synced_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  PRIMARY KEY (folder_id, entity_id)
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

type fakeCRMGateway struct {
	pages     []*sumit.ListEntitiesData
	entity    *sumit.EntityData
	getErr    error
	listCalls int
	getCalls  int
	lastList  *sumit.ListEntitiesRequest
}

func (f *fakeCRMGateway) ListEntities(_ context.Context, req *sumit.ListEntitiesRequest) (*sumit.ListEntitiesData, error) {
	f.lastList = req
	idx := f.listCalls
	f.listCalls++
	if idx < len(f.pages) {
		return f.pages[idx], nil
	}
	return &sumit.ListEntitiesData{}, nil
}

func (f *fakeCRMGateway) GetEntity(_ context.Context, _ *sumit.GetEntityRequest) (*sumit.EntityData, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entity, nil
}

func newCRMService(t *testing.T, conn *gorm.DB, gateway Gateway, stockFolderID int64) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:          NewRepository(conn),
		Gateway:       gateway,
		StockFolderID: stockFolderID,
		Now:           func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestApplyEntityEventUpsertsFromProperties(t *testing.T) {
	conn := setupCRMTestDB(t)
	svc := newCRMService(t, conn, nil, 0)

	event := webhooks.EntityEvent{
		FolderID:   42,
		EntityID:   9001,
		Action:     "update",
		Properties: json.RawMessage(`{"stock":3,"sku":"ABC"}`),
	}
	require.NoError(t, svc.ApplyEntityEvent(context.Background(), event))

	var stored models.CRMEntity
	require.NoError(t, conn.Where("folder_id = ? AND entity_id = ?", 42, 9001).First(&stored).Error)
	require.JSONEq(t, `{"stock":3,"sku":"ABC"}`, string(stored.Properties))

	// replay with newer properties replaces the snapshot, never duplicates
	event.Properties = json.RawMessage(`{"stock":1}`)
	require.NoError(t, svc.ApplyEntityEvent(context.Background(), event))

	var count int64
	require.NoError(t, conn.Model(&models.CRMEntity{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.NoError(t, conn.Where("folder_id = ? AND entity_id = ?", 42, 9001).First(&stored).Error)
	require.JSONEq(t, `{"stock":1}`, string(stored.Properties))
}

func TestApplyEntityEventDeleteMarksRow(t *testing.T) {
	conn := setupCRMTestDB(t)
	svc := newCRMService(t, conn, nil, 0)

	require.NoError(t, svc.ApplyEntityEvent(context.Background(), webhooks.EntityEvent{
		FolderID:   42,
		EntityID:   9001,
		Action:     "update",
		Properties: json.RawMessage(`{"stock":3}`),
	}))
	require.NoError(t, svc.ApplyEntityEvent(context.Background(), webhooks.EntityEvent{
		FolderID: 42,
		EntityID: 9001,
		Action:   "delete",
	}))

	var stored models.CRMEntity
	require.NoError(t, conn.Where("folder_id = ? AND entity_id = ?", 42, 9001).First(&stored).Error)
	require.NotNil(t, stored.DeletedAt)
}

func TestApplyEntityEventRefetchesWhenNoProperties(t *testing.T) {
	conn := setupCRMTestDB(t)
	name := "Widget"
	gateway := &fakeCRMGateway{entity: &sumit.EntityData{Entity: &sumit.Entity{
		ID:       9001,
		FolderID: 42,
		Name:     name,
		Properties: map[string]json.RawMessage{
			"stock": json.RawMessage(`7`),
		},
	}}}
	svc := newCRMService(t, conn, gateway, 0)

	require.NoError(t, svc.ApplyEntityEvent(context.Background(), webhooks.EntityEvent{
		FolderID: 42,
		EntityID: 9001,
		Action:   "update",
	}))
	require.Equal(t, 1, gateway.getCalls)

	var stored models.CRMEntity
	require.NoError(t, conn.Where("folder_id = ? AND entity_id = ?", 42, 9001).First(&stored).Error)
	require.NotNil(t, stored.Name)
	require.Equal(t, "Widget", *stored.Name)
	require.Contains(t, string(stored.Properties), "stock")
}

func TestApplyEntityEventRemoteGoneMarksDeleted(t *testing.T) {
	conn := setupCRMTestDB(t)
	gateway := &fakeCRMGateway{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "entity not found")}
	svc := newCRMService(t, conn, gateway, 0)

	require.NoError(t, conn.Create(&models.CRMEntity{
		FolderID: 42,
		EntityID: 9001,
		SyncedAt: time.Now(),
	}).Error)

	require.NoError(t, svc.ApplyEntityEvent(context.Background(), webhooks.EntityEvent{
		FolderID: 42,
		EntityID: 9001,
		Action:   "update",
	}))

	var stored models.CRMEntity
	require.NoError(t, conn.Where("folder_id = ? AND entity_id = ?", 42, 9001).First(&stored).Error)
	require.NotNil(t, stored.DeletedAt)
}

func TestSyncStockFolderPagesThroughResults(t *testing.T) {
	conn := setupCRMTestDB(t)
	gateway := &fakeCRMGateway{pages: []*sumit.ListEntitiesData{
		{
			Entities:  []sumit.Entity{{ID: 1, FolderID: 42}, {ID: 2, FolderID: 42}},
			PageCount: 2, PageNumber: 1,
		},
		{
			Entities:  []sumit.Entity{{ID: 3, FolderID: 42}},
			PageCount: 2, PageNumber: 2,
		},
	}}
	svc := newCRMService(t, conn, gateway, 42)

	summary, err := svc.SyncStockFolder(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Scanned)
	require.Equal(t, 3, summary.Synced)
	require.Equal(t, 2, gateway.listCalls)

	var count int64
	require.NoError(t, conn.Model(&models.CRMEntity{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestSyncFolderIncrementalUsesLastSync(t *testing.T) {
	conn := setupCRMTestDB(t)
	synced := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&models.CRMEntity{
		FolderID: 42,
		EntityID: 1,
		SyncedAt: synced,
	}).Error)

	gateway := &fakeCRMGateway{}
	svc := newCRMService(t, conn, gateway, 42)

	_, err := svc.SyncFolder(context.Background(), 42, false)
	require.NoError(t, err)
	require.NotNil(t, gateway.lastList)
	require.Equal(t, synced.Format(time.RFC3339), gateway.lastList.UpdatedAfter)

	_, err = svc.SyncFolder(context.Background(), 42, true)
	require.NoError(t, err)
	require.Empty(t, gateway.lastList.UpdatedAfter)
}

func TestSyncStockFolderRequiresConfiguration(t *testing.T) {
	conn := setupCRMTestDB(t)
	svc := newCRMService(t, conn, &fakeCRMGateway{}, 0)

	_, err := svc.SyncStockFolder(context.Background(), false)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
