package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/config"
)

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Billing: config.BillingConfig{
			MaxChargeRetries:    3,
			RetryFailedCharges:  true,
			CreateOrderDocument: false,
			AllowPause:          true,
		},
		Webhooks: config.WebhooksConfig{
			TrustUnsigned: false,
		},
	}
}

func TestResolveFallsBackToConfig(t *testing.T) {
	db := setupSettingsTestDB(t)
	svc, err := NewService(db, testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, svc.RetryFailedCharges(ctx))
	require.False(t, svc.CreateOrderDocument(ctx))
	require.Equal(t, 3, svc.MaxChargeRetries(ctx))
	require.False(t, svc.TrustUnsignedWebhooks(ctx))
}

func TestDBOverrideWinsOverConfig(t *testing.T) {
	db := setupSettingsTestDB(t)
	svc, err := NewService(db, testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, KeyRetryFailedCharges, "false"))
	require.NoError(t, svc.Set(ctx, KeyMaxChargeRetries, "5"))

	require.False(t, svc.RetryFailedCharges(ctx))
	require.Equal(t, 5, svc.MaxChargeRetries(ctx))
}

func TestUnsetRestoresConfigDefault(t *testing.T) {
	db := setupSettingsTestDB(t)
	svc, err := NewService(db, testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, KeyAllowPause, "false"))
	require.False(t, svc.AllowPause(ctx))

	require.NoError(t, svc.Unset(ctx, KeyAllowPause))
	require.True(t, svc.AllowPause(ctx))
}

func TestMalformedOverrideFallsBack(t *testing.T) {
	db := setupSettingsTestDB(t)
	svc, err := NewService(db, testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, KeyMaxChargeRetries, "not-a-number"))
	require.Equal(t, 3, svc.MaxChargeRetries(ctx))
}

func TestSetReplacesExistingValue(t *testing.T) {
	db := setupSettingsTestDB(t)
	svc, err := NewService(db, testConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, KeyMaxChargeRetries, "4"))
	require.NoError(t, svc.Set(ctx, KeyMaxChargeRetries, "7"))
	require.Equal(t, 7, svc.MaxChargeRetries(ctx))
}
