package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/types"
)

type fakeIngestService struct {
	lastInput webhooks.IngestInput
	result    *webhooks.IngestResult
	err       error
}

func (f *fakeIngestService) Ingest(_ context.Context, in webhooks.IngestInput) (*webhooks.IngestResult, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestSumitWebhookAcksWithWebhookID(t *testing.T) {
	webhookID := uuid.New()
	svc := &fakeIngestService{result: &webhooks.IngestResult{
		WebhookID: webhookID,
		Queued:    true,
		Message:   "accepted",
	}}

	router := chi.NewRouter()
	router.Post("/api/v1/webhook/sumit/{eventType}", SumitWebhook(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/sumit/card.updated", strings.NewReader(`{"Token":"tok_1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, "sig")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack types.WebhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Success || !ack.Queued || ack.WebhookID != webhookID.String() {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if svc.lastInput.Source != enums.WebhookSourceSumit {
		t.Fatalf("unexpected source %s", svc.lastInput.Source)
	}
	if svc.lastInput.DeclaredEventType != "card.updated" {
		t.Fatalf("expected declared event type from path, got %q", svc.lastInput.DeclaredEventType)
	}
	if svc.lastInput.Signature != "sig" {
		t.Fatalf("signature header not forwarded")
	}
}

func TestBitWebhookRejectsMissingCorrelationParams(t *testing.T) {
	svc := &fakeIngestService{err: pkgerrors.New(pkgerrors.CodeValidation, "orderid and orderkey are required")}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/bit", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	BitWebhook(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCRMWebhookForwardsQueryAndBody(t *testing.T) {
	svc := &fakeIngestService{result: &webhooks.IngestResult{WebhookID: uuid.New(), Queued: false, Message: "accepted, processing deferred"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/crm?source=stock", strings.NewReader(`{"EntityID":9,"FolderID":42}`))
	rec := httptest.NewRecorder()
	CRMWebhook(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastInput.Source != enums.WebhookSourceCRM {
		t.Fatalf("unexpected source %s", svc.lastInput.Source)
	}
	if got := svc.lastInput.Query.Get("source"); got != "stock" {
		t.Fatalf("query not forwarded, got %q", got)
	}
	var ack types.WebhookAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Queued {
		t.Fatal("expected queued=false when enqueue is deferred")
	}
}
