package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

// Setting keys recognized by the resolver. Values stored in the settings
// table override the env-config defaults at read time, so operators can flip
// behavior without a redeploy.
const (
	KeyRetryFailedCharges  = "subscriptions_retry_failed"
	KeyCreateOrderDocument = "create_order_document"
	KeyAllowPause          = "subscriptions_allow_pause"
	KeyMaxChargeRetries    = "max_charge_retries"
	KeyTrustUnsigned       = "trust_unsigned_webhooks"
)

// Service resolves configuration with DB-stored overrides layered on top of
// the process env config.
type Service struct {
	db   *gorm.DB
	cfg  *config.Config
	logg *logger.Logger
}

func NewService(db *gorm.DB, cfg *config.Config, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return &Service{db: db, cfg: cfg, logg: logg}, nil
}

// Resolve returns the raw override value for key, or ok=false when no
// override is stored.
func (s *Service) Resolve(ctx context.Context, key string) (string, bool) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "setting lookup failed, using config default")
		}
		return "", false
	}
	return row.Value, true
}

// Set stores or replaces an override value.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is required")
	}
	row := models.Setting{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Assign(map[string]any{"value": value}).
		FirstOrCreate(&row).Error
}

// Unset removes an override, restoring the config default.
func (s *Service) Unset(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error
}

func (s *Service) resolveBool(ctx context.Context, key string, fallback bool) bool {
	raw, ok := s.Resolve(ctx, key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s *Service) resolveInt(ctx context.Context, key string, fallback int) int {
	raw, ok := s.Resolve(ctx, key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return parsed
}

// RetryFailedCharges reports whether failed recurring charges get retried.
func (s *Service) RetryFailedCharges(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyRetryFailedCharges, s.cfg.Billing.RetryFailedCharges)
}

// CreateOrderDocument reports whether an order document is created per charge.
func (s *Service) CreateOrderDocument(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyCreateOrderDocument, s.cfg.Billing.CreateOrderDocument)
}

// AllowPause reports whether subscriptions may be paused.
func (s *Service) AllowPause(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyAllowPause, s.cfg.Billing.AllowPause)
}

// MaxChargeRetries returns the retry cap for failed charges.
func (s *Service) MaxChargeRetries(ctx context.Context) int {
	v := s.resolveInt(ctx, KeyMaxChargeRetries, s.cfg.Billing.MaxChargeRetries)
	if v < 0 {
		return 0
	}
	return v
}

// TrustUnsignedWebhooks reports whether unsigned webhooks are accepted.
func (s *Service) TrustUnsignedWebhooks(ctx context.Context) bool {
	return s.resolveBool(ctx, KeyTrustUnsigned, s.cfg.Webhooks.TrustUnsigned)
}
