package cron

import (
	"context"
	"fmt"

	"github.com/sumitpay/billing-backend/internal/crm"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

type stockSyncer interface {
	SyncStockFolder(ctx context.Context, force bool) (crm.SyncSummary, error)
}

// StockSyncJobParams configures the CRM stock folder sync job.
type StockSyncJobParams struct {
	Logger *logger.Logger
	CRM    stockSyncer
}

// NewStockSyncJob builds the incremental CRM stock sync job.
func NewStockSyncJob(params StockSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.CRM == nil {
		return nil, fmt.Errorf("crm service required")
	}
	return &stockSyncJob{logg: params.Logger, crm: params.CRM}, nil
}

type stockSyncJob struct {
	logg *logger.Logger
	crm  stockSyncer
}

func (j *stockSyncJob) Name() string { return "stock-sync" }

func (j *stockSyncJob) Run(ctx context.Context) error {
	summary, err := j.crm.SyncStockFolder(ctx, false)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": summary.Scanned,
		"synced":  summary.Synced,
		"failed":  summary.Failed,
	})
	j.logg.Info(logCtx, "stock sync complete")
	return err
}
