package webhooks

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var errTest = errors.New("boom")

func setupWebhooksTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	webhookEvents := `
CREATE TABLE IF NOT EXISTS webhook_events (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  raw_body BLOB,
  headers TEXT,
  source_ip TEXT,
  signature TEXT,
  signature_verified INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  processed_at DATETIME,
  error_message TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, conn.Exec(webhookEvents).Error)
	require.NoError(t, conn.Exec(outboxEvents).Error)
	return conn
}

type fakeQueue struct {
	published []uuid.UUID
	err       error
}

func (f *fakeQueue) PublishWebhookTask(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

type fakeDedupe struct {
	duplicate bool
	err       error
	calls     int
}

func (f *fakeDedupe) CheckAndMarkProcessed(context.Context, string, string) (bool, error) {
	f.calls++
	return f.duplicate, f.err
}

type fakeTrust struct{ trust bool }

func (f *fakeTrust) TrustUnsignedWebhooks(context.Context) bool { return f.trust }

type fakeTransactionApplier struct {
	updates []PaymentUpdate
	err     error
}

func (f *fakeTransactionApplier) ApplyGatewayPayment(_ context.Context, update PaymentUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakeSubscriptionApplier struct {
	updates []SubscriptionUpdate
	err     error
}

func (f *fakeSubscriptionApplier) ApplyRemoteStatus(_ context.Context, update SubscriptionUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakeTokenApplier struct {
	events []CardEvent
	err    error
}

func (f *fakeTokenApplier) ApplyCardEvent(_ context.Context, event CardEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeCRMApplier struct {
	events []EntityEvent
	err    error
}

func (f *fakeCRMApplier) ApplyEntityEvent(_ context.Context, event EntityEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
