package bulk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

type fakeSubscriptionActions struct {
	cancelErrs    map[uuid.UUID]error
	cancelCalls   int
	chargeOutcome billing.ChargeOutcome
	chargeErrs    []error
	chargeCalls   int
}

func (f *fakeSubscriptionActions) Cancel(_ context.Context, id uuid.UUID, _ string) error {
	f.cancelCalls++
	if f.cancelErrs != nil {
		return f.cancelErrs[id]
	}
	return nil
}

func (f *fakeSubscriptionActions) ChargeNow(_ context.Context, _ uuid.UUID) (billing.ChargeOutcome, error) {
	idx := f.chargeCalls
	f.chargeCalls++
	if idx < len(f.chargeErrs) && f.chargeErrs[idx] != nil {
		return billing.ChargeOutcome{}, f.chargeErrs[idx]
	}
	return f.chargeOutcome, nil
}

type fakeTokenActions struct {
	errs  []error
	calls int
}

func (f *fakeTokenActions) SyncFromGateway(_ context.Context, _ uuid.UUID) error {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) {
		return f.errs[idx]
	}
	return nil
}

type fakeDocumentActions struct {
	calls    int
	lastAddr string
	err      error
}

func (f *fakeDocumentActions) EmailDocument(_ context.Context, _ uuid.UUID, address string) error {
	f.calls++
	f.lastAddr = address
	return f.err
}

func newTestExecutor(t *testing.T, mutate func(*ExecutorParams)) *Executor {
	t.Helper()
	params := ExecutorParams{
		Subscriptions: &fakeSubscriptionActions{},
		BackoffSteps:  []time.Duration{time.Millisecond, time.Millisecond},
	}
	if mutate != nil {
		mutate(&params)
	}
	executor, err := NewExecutor(params)
	require.NoError(t, err)
	return executor
}

func TestExecuteIsolatesTerminalFailure(t *testing.T) {
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	subs := &fakeSubscriptionActions{cancelErrs: map[uuid.UUID]error{
		ids[2]: pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already canceled"),
	}}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Subscriptions = subs })

	records := make([]Record, len(ids))
	for i, id := range ids {
		records[i] = Record{Action: enums.BulkActionCancelSubscription, TargetID: id}
	}
	summary := executor.Execute(context.Background(), Batch{BatchID: uuid.New(), Records: records})

	require.Equal(t, 4, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 5)

	failed := summary.Results[2]
	require.False(t, failed.Success)
	require.Equal(t, ids[2], failed.Record.TargetID)
	require.Contains(t, failed.Message, "already canceled")
	// a business-rule failure is terminal, never retried
	require.Equal(t, 1, failed.Attempts)
	require.Equal(t, 5, subs.cancelCalls)
}

func TestExecuteRetriesInfrastructureFailure(t *testing.T) {
	tokens := &fakeTokenActions{errs: []error{
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
	}}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Tokens = tokens })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionSyncToken, TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
	require.True(t, summary.Results[0].Success)
	require.Equal(t, 3, summary.Results[0].Attempts)
	require.Equal(t, 3, tokens.calls)
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	tokens := &fakeTokenActions{errs: []error{
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
		pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout"),
	}}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Tokens = tokens })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionSyncToken, TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 3, summary.Results[0].Attempts)
	require.Equal(t, 3, tokens.calls)
	require.Contains(t, summary.Results[0].Message, "gateway timeout")
}

func TestChargeDeclineIsTerminal(t *testing.T) {
	subs := &fakeSubscriptionActions{chargeOutcome: billing.ChargeOutcome{
		Success: false,
		Message: "card declined",
	}}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Subscriptions = subs })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionChargeSubscription, TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.Results[0].Attempts)
	require.Equal(t, 1, subs.chargeCalls)
	require.Contains(t, summary.Results[0].Message, "card declined")
}

func TestChargeTransportErrorIsRetried(t *testing.T) {
	subs := &fakeSubscriptionActions{
		chargeOutcome: billing.ChargeOutcome{Success: true},
		chargeErrs: []error{
			pkgerrors.New(pkgerrors.CodeDependency, "connection reset"),
		},
	}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Subscriptions = subs })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionChargeSubscription, TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 2, summary.Results[0].Attempts)
	require.Equal(t, 2, subs.chargeCalls)
}

func TestEmailDocumentPassesAddress(t *testing.T) {
	docs := &fakeDocumentActions{}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Documents = docs })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{
			Action:       enums.BulkActionEmailDocument,
			TargetID:     uuid.New(),
			EmailAddress: "billing@example.com",
		}},
	})

	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, "billing@example.com", docs.lastAddr)
}

func TestEmailDocumentRequiresAddress(t *testing.T) {
	docs := &fakeDocumentActions{}
	executor := newTestExecutor(t, func(p *ExecutorParams) { p.Documents = docs })

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionEmailDocument, TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 0, docs.calls)
	require.Contains(t, summary.Results[0].Message, "email address is required")
}

func TestUnknownActionFailsRecord(t *testing.T) {
	executor := newTestExecutor(t, nil)

	summary := executor.Execute(context.Background(), Batch{
		BatchID: uuid.New(),
		Records: []Record{{Action: enums.BulkActionType("reindex"), TargetID: uuid.New()}},
	})

	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 1, summary.Results[0].Attempts)
}
