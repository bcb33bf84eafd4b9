package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Sumit        SumitConfig
	Billing      BillingConfig
	Webhooks     WebhooksConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUMIT_APP_ENV" required:"true"`
	Port         string `envconfig:"SUMIT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUMIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUMIT_LOG_WARN_STACK" default:"false"`
	WebhookPath  string `envconfig:"SUMIT_WEBHOOK_PATH_PREFIX" default:"/api/v1"`
	AdminAPIKey  string `envconfig:"SUMIT_ADMIN_API_KEY"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUMIT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUMIT_DB_DSN"`
	Driver string `envconfig:"SUMIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUMIT_DB_HOST"`
	LegacyPort     int    `envconfig:"SUMIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUMIT_DB_USER"`
	LegacyPassword string `envconfig:"SUMIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUMIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUMIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUMIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUMIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUMIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUMIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUMIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUMIT_REDIS_ADDR"`
	Password     string        `envconfig:"SUMIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUMIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUMIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUMIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUMIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUMIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUMIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SumitConfig holds gateway credentials and endpoint settings.
type SumitConfig struct {
	CompanyID     int64         `envconfig:"SUMIT_COMPANY_ID" required:"true"`
	APIKey        string        `envconfig:"SUMIT_API_KEY" required:"true"`
	BaseURL       string        `envconfig:"SUMIT_API_BASE_URL" default:"https://api.sumit.co.il"`
	WebhookSecret string        `envconfig:"SUMIT_WEBHOOK_SECRET"`
	TestMode      bool          `envconfig:"SUMIT_TEST_MODE" default:"false"`
	ChargeTimeout time.Duration `envconfig:"SUMIT_CHARGE_TIMEOUT" default:"180s"`
	ReadTimeout   time.Duration `envconfig:"SUMIT_READ_TIMEOUT" default:"30s"`
	StockFolderID int64         `envconfig:"SUMIT_STOCK_FOLDER_ID"`
}

type BillingConfig struct {
	MaxChargeRetries    int           `envconfig:"SUMIT_BILLING_MAX_CHARGE_RETRIES" default:"3"`
	RetryFailedCharges  bool          `envconfig:"SUMIT_BILLING_RETRY_FAILED_CHARGES" default:"true"`
	CreateOrderDocument bool          `envconfig:"SUMIT_BILLING_CREATE_ORDER_DOCUMENT" default:"true"`
	AllowPause          bool          `envconfig:"SUMIT_BILLING_ALLOW_PAUSE" default:"false"`
	DueBatchLimit       int           `envconfig:"SUMIT_BILLING_DUE_BATCH_LIMIT" default:"250"`
	CronInterval        time.Duration `envconfig:"SUMIT_BILLING_CRON_INTERVAL" default:"1h"`
}

type WebhooksConfig struct {
	TrustUnsigned   bool          `envconfig:"SUMIT_WEBHOOKS_TRUST_UNSIGNED" default:"false"`
	TrustedIPs      []string      `envconfig:"SUMIT_WEBHOOKS_TRUSTED_IPS"`
	MaxRetries      int           `envconfig:"SUMIT_WEBHOOKS_MAX_RETRIES" default:"5"`
	DedupTTL        time.Duration `envconfig:"SUMIT_WEBHOOKS_DEDUP_TTL" default:"720h"`
	ProcessDeadline time.Duration `envconfig:"SUMIT_WEBHOOKS_PROCESS_DEADLINE" default:"60s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SUMIT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SUMIT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SUMIT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	WebhooksTopic        string `envconfig:"SUMIT_PUBSUB_WEBHOOKS_TOPIC" default:"sumit-webhook-tasks"`
	WebhooksSubscription string `envconfig:"SUMIT_PUBSUB_WEBHOOKS_SUBSCRIPTION" required:"true"`
	BulkTopic            string `envconfig:"SUMIT_PUBSUB_BULK_TOPIC" default:"sumit-bulk-actions"`
	BulkSubscription     string `envconfig:"SUMIT_PUBSUB_BULK_SUBSCRIPTION" required:"true"`
	EventsTopic          string `envconfig:"SUMIT_PUBSUB_EVENTS_TOPIC" default:"sumit-billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUMIT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SUMIT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUMIT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUMIT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUMIT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
