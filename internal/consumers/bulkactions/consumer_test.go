package bulkactions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/internal/bulk"
	"github.com/sumitpay/billing-backend/pkg/enums"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

type fakeExecutor struct {
	batches []bulk.Batch
}

func (f *fakeExecutor) Execute(_ context.Context, batch bulk.Batch) bulk.BatchSummary {
	f.batches = append(f.batches, batch)
	return bulk.BatchSummary{BatchID: batch.BatchID, Succeeded: len(batch.Records)}
}

type fakeBatchGuard struct {
	already bool
}

func (f *fakeBatchGuard) CheckAndMarkProcessed(context.Context, string, string) (bool, error) {
	return f.already, nil
}

func batchBytes(t *testing.T, batch bulk.Batch) []byte {
	t.Helper()
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	return data
}

func testConsumer(exec *fakeExecutor, guard *fakeBatchGuard) *Consumer {
	c := &Consumer{
		executor: exec,
		logg:     logger.New(logger.Options{ServiceName: "test"}),
	}
	if guard != nil {
		c.guard = guard
	}
	return c
}

func TestHandleExecutesBatch(t *testing.T) {
	exec := &fakeExecutor{}
	batch := bulk.Batch{
		BatchID: uuid.New(),
		Records: []bulk.Record{{Action: enums.BulkActionCancelSubscription, TargetID: uuid.New()}},
	}

	testConsumer(exec, &fakeBatchGuard{}).handle(context.Background(), batchBytes(t, batch))

	if len(exec.batches) != 1 {
		t.Fatalf("expected 1 executed batch, got %d", len(exec.batches))
	}
	if exec.batches[0].BatchID != batch.BatchID {
		t.Fatalf("batch id mismatch")
	}
}

func TestHandleSkipsRedeliveredBatch(t *testing.T) {
	exec := &fakeExecutor{}
	batch := bulk.Batch{
		BatchID: uuid.New(),
		Records: []bulk.Record{{Action: enums.BulkActionSyncToken, TargetID: uuid.New()}},
	}

	testConsumer(exec, &fakeBatchGuard{already: true}).handle(context.Background(), batchBytes(t, batch))

	if len(exec.batches) != 0 {
		t.Fatalf("expected no execution, got %d", len(exec.batches))
	}
}

func TestHandleIgnoresMalformedAndEmptyBatches(t *testing.T) {
	exec := &fakeExecutor{}
	consumer := testConsumer(exec, nil)

	consumer.handle(context.Background(), []byte("{not json"))
	consumer.handle(context.Background(), batchBytes(t, bulk.Batch{BatchID: uuid.New()}))

	if len(exec.batches) != 0 {
		t.Fatalf("expected no execution, got %d", len(exec.batches))
	}
}
