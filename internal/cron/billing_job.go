package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

// billingEngine is the slice of the billing service the job drives.
type billingEngine interface {
	ProcessDueSubscriptions(ctx context.Context) (map[uuid.UUID]billing.ChargeOutcome, error)
}

// BillingJobParams configures the recurring billing job.
type BillingJobParams struct {
	Logger *logger.Logger
	Engine billingEngine
}

// NewBillingJob builds the cron job that charges every due subscription.
func NewBillingJob(params BillingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("billing engine required")
	}
	return &billingJob{
		logg:   params.Logger,
		engine: params.Engine,
	}, nil
}

type billingJob struct {
	logg   *logger.Logger
	engine billingEngine
}

func (j *billingJob) Name() string { return "recurring-billing" }

func (j *billingJob) Run(ctx context.Context) error {
	outcomes, err := j.engine.ProcessDueSubscriptions(ctx)
	charged := 0
	declined := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			charged++
			continue
		}
		declined++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":      len(outcomes),
		"charged":  charged,
		"declined": declined,
	})
	j.logg.Info(logCtx, "recurring billing run complete")
	// err aggregates per-subscription failures; every charge already ran.
	return err
}
