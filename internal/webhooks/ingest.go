package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
)

const dedupeConsumer = "webhook-ingest"

// TaskPublisher enqueues the async reconciliation task for a webhook row.
type TaskPublisher interface {
	PublishWebhookTask(ctx context.Context, webhookID uuid.UUID) error
}

// DedupeGuard suppresses re-processing of retried deliveries.
type DedupeGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Service ingests inbound webhooks: it persists the write-ahead audit record
// synchronously and defers every state mutation to the async processor.
type Service struct {
	repo    *Repository
	secret  string
	queue   TaskPublisher
	dedupe  DedupeGuard
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

// ServiceParams collects the ingest service dependencies.
type ServiceParams struct {
	Repo          *Repository
	WebhookSecret string
	Queue         TaskPublisher
	Dedupe        DedupeGuard
	Metrics       *metrics.WebhookMetrics
	Logger        *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, errors.New("webhook repository is required")
	}
	return &Service{
		repo:    p.Repo,
		secret:  p.WebhookSecret,
		queue:   p.Queue,
		dedupe:  p.Dedupe,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

// IngestInput is one inbound webhook delivery.
type IngestInput struct {
	Source            enums.WebhookSource
	DeclaredEventType string
	Body              []byte
	ContentType       string
	Headers           http.Header
	Query             url.Values
	SourceIP          string
	Signature         string
}

// IngestResult is the acknowledgement returned to the HTTP layer.
type IngestResult struct {
	WebhookID uuid.UUID
	Queued    bool
	Duplicate bool
	Message   string
}

// Ingest validates correlation parameters, persists the audit row and
// enqueues the reconciliation task. A returned error means the request was
// structurally invalid and no audit row exists; every other outcome acks.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if !in.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown webhook source")
	}

	payload, err := NormalizePayload(in.Body, in.ContentType)
	if err != nil {
		return nil, err
	}
	payload, err = s.applySourceRules(in, payload)
	if err != nil {
		return nil, err
	}

	eventType := s.resolveEventType(in, payload)
	verified := VerifySignature(s.secret, in.Body, in.Signature)

	event := &models.WebhookEvent{
		Source:            in.Source,
		EventType:         eventType,
		Payload:           payload,
		RawBody:           in.Body,
		Headers:           encodeHeaders(in.Headers),
		SourceIP:          in.SourceIP,
		SignatureVerified: verified,
		Status:            enums.WebhookStatusPending,
	}
	if sig := strings.TrimSpace(in.Signature); sig != "" {
		event.Signature = &sig
	}

	// Write-ahead guarantee: the audit row exists before anything else runs.
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist webhook audit record")
	}

	ctx = s.withWebhookContext(ctx, event)
	s.metrics.IncReceived(in.Source.String())

	if duplicate, err := s.checkDuplicate(ctx, in, eventType); err == nil && duplicate {
		// Same delivery already accepted; keep the audit row but skip the task.
		if markErr := s.repo.MarkProcessed(ctx, event.ID); markErr != nil && s.logg != nil {
			s.logg.Error(ctx, "mark duplicate webhook processed", markErr)
		}
		s.metrics.IncDuplicate(in.Source.String())
		return &IngestResult{
			WebhookID: event.ID,
			Queued:    false,
			Duplicate: true,
			Message:   "duplicate delivery",
		}, nil
	}

	queued := s.enqueue(ctx, event.ID)
	message := "accepted"
	if !queued {
		message = "accepted, processing deferred"
	}
	return &IngestResult{
		WebhookID: event.ID,
		Queued:    queued,
		Message:   message,
	}, nil
}

// applySourceRules enforces per-source correlation requirements and folds
// query parameters into the payload where the provider sends them that way.
func (s *Service) applySourceRules(in IngestInput, payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed payload")
	}

	switch in.Source {
	case enums.WebhookSourceBit:
		orderID := strings.TrimSpace(in.Query.Get("orderid"))
		orderKey := strings.TrimSpace(in.Query.Get("orderkey"))
		if orderID == "" || orderKey == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderid and orderkey are required")
		}
		fields["orderid"], _ = json.Marshal(orderID)
		fields["orderkey"], _ = json.Marshal(orderKey)

	case enums.WebhookSourceCRM:
		_, hasEntity := firstInt64(fields, "EntityID", "ID")
		_, hasFolder := firstInt64(fields, "FolderID", "Folder")
		if !hasEntity && !hasFolder {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity or folder identifier is required")
		}
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
	}
	return encoded, nil
}

func (s *Service) resolveEventType(in IngestInput, payload json.RawMessage) string {
	eventType := DetectEventType(in.DeclaredEventType, payload)
	if eventType != "" {
		return eventType
	}
	switch in.Source {
	case enums.WebhookSourceBit:
		return "bit.payment"
	case enums.WebhookSourceCRM:
		return "crm.entity"
	default:
		return "sumit.event"
	}
}

func (s *Service) checkDuplicate(ctx context.Context, in IngestInput, eventType string) (bool, error) {
	if s.dedupe == nil {
		return false, nil
	}
	digest := sha256.Sum256(append([]byte(in.Source.String()+":"+eventType+":"), in.Body...))
	duplicate, err := s.dedupe.CheckAndMarkProcessed(ctx, dedupeConsumer, hex.EncodeToString(digest[:]))
	if err != nil {
		// Dedup is best effort; the processor's status guard is authoritative.
		if s.logg != nil {
			s.logg.Warn(ctx, "webhook dedupe check failed")
		}
		return false, err
	}
	return duplicate, nil
}

func (s *Service) enqueue(ctx context.Context, webhookID uuid.UUID) bool {
	if s.queue == nil {
		return false
	}
	if err := s.queue.PublishWebhookTask(ctx, webhookID); err != nil {
		// The row stays pending; the retry cron picks it up later.
		if s.logg != nil {
			s.logg.Error(ctx, "enqueue webhook task", err)
		}
		return false
	}
	return true
}

func (s *Service) withWebhookContext(ctx context.Context, event *models.WebhookEvent) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithWebhookID(ctx, event.ID.String())
	return s.logg.WithFields(ctx, map[string]any{
		"webhook_source": event.Source,
		"event_type":     event.EventType,
	})
}

func encodeHeaders(headers http.Header) json.RawMessage {
	if len(headers) == 0 {
		return nil
	}
	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return encoded
}
