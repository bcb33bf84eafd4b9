package sumit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sumitpay/billing-backend/pkg/config"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const (
	defaultBaseURL       = "https://api.sumit.co.il"
	defaultReadTimeout   = 30 * time.Second
	defaultChargeTimeout = 180 * time.Second

	responseBodyReadLimit int64 = 4 << 20
)

var (
	errCompanyIDRequired = errors.New("sumit company id is required")
	errAPIKeyRequired    = errors.New("sumit api key is required")
)

// Client wraps the SUMIT (OfficeGuy) REST API with centralized credentials,
// timeouts, logging and error mapping. Money-moving operations get the long
// charge timeout; read operations get the short one.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	credentials   Credentials
	webhookSecret string
	testMode      bool
	chargeTimeout time.Duration
	readTimeout   time.Duration
	logger        *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the SUMIT client from configuration.
func NewClient(cfg config.SumitConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if cfg.CompanyID == 0 {
		return nil, errCompanyIDRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}

	chargeTimeout := cfg.ChargeTimeout
	if chargeTimeout <= 0 {
		chargeTimeout = defaultChargeTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	client := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		credentials: Credentials{
			CompanyID: cfg.CompanyID,
			APIKey:    cfg.APIKey,
		},
		webhookSecret: cfg.WebhookSecret,
		testMode:      cfg.TestMode,
		chargeTimeout: chargeTimeout,
		readTimeout:   readTimeout,
		logger:        logg,
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// WebhookSecret returns the shared secret used to sign inbound webhooks.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// TestMode reports whether charges run against the sandbox company.
func (c *Client) TestMode() bool {
	if c == nil {
		return false
	}
	return c.testMode
}

// post issues an authenticated POST and decodes the standard envelope.
// The request struct must embed Credentials; post fills them in.
func (c *Client) post(ctx context.Context, path string, timeout time.Duration, payload credentialed, out any) (*Envelope, error) {
	payload.setCredentials(c.credentials)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sumit request")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build sumit request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("sumit %s", path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read sumit response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sumit %s returned HTTP %d", path, resp.StatusCode)).
			WithDetails(map[string]any{"body": truncate(string(raw), 512)})
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sumit envelope")
	}
	envelope.Raw = raw

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sumit data")
		}
	}

	return &envelope, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
