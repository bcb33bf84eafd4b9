package cron

import (
	"context"
	"fmt"

	"github.com/sumitpay/billing-backend/internal/documents"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const defaultDocumentSyncDays = 30

type documentSyncer interface {
	SyncAll(ctx context.Context, input documents.SyncAllInput) (documents.SyncSummary, error)
}

// DocumentSyncJobParams configures the draft-document refresh job.
type DocumentSyncJobParams struct {
	Logger    *logger.Logger
	Documents documentSyncer
	Days      int
}

// NewDocumentSyncJob builds the job that refreshes recent draft documents
// from the gateway.
func NewDocumentSyncJob(params DocumentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("document service required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultDocumentSyncDays
	}
	return &documentSyncJob{
		logg: params.Logger,
		docs: params.Documents,
		days: days,
	}, nil
}

type documentSyncJob struct {
	logg *logger.Logger
	docs documentSyncer
	days int
}

func (j *documentSyncJob) Name() string { return "document-sync" }

func (j *documentSyncJob) Run(ctx context.Context) error {
	summary, err := j.docs.SyncAll(ctx, documents.SyncAllInput{Days: j.days})
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": summary.Scanned,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	})
	j.logg.Info(logCtx, "document sync complete")
	return err
}
