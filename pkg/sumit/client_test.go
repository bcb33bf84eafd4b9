package sumit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sumitpay/billing-backend/pkg/config"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.SumitConfig{
		CompanyID: 12345,
		APIKey:    "secret",
		BaseURL:   server.URL,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.SumitConfig{APIKey: "k"}, nil); err == nil {
		t.Fatal("expected error for missing company id")
	}
	if _, err := NewClient(config.SumitConfig{CompanyID: 1}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestChargeInjectsCredentialsAndDecodesPayment(t *testing.T) {
	var captured map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathCharge {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Status": 0,
			"Data": {
				"Payment": {"ID": 555, "AuthNumber": "AUTH1", "ValidPayment": true, "Amount": 100}
			}
		}`))
	})

	result, err := client.Charge(context.Background(), &ChargeRequest{
		Customer: Customer{Name: "Dana"},
		Items: []ChargeItem{{
			Item:      ChargeItemDetails{Name: "Monthly plan"},
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: decimal.NewFromInt(100),
		}},
		Currency: "ILS",
	})
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}

	creds, ok := captured["Credentials"].(map[string]any)
	if !ok {
		t.Fatal("request body missing Credentials")
	}
	if creds["CompanyID"].(float64) != 12345 || creds["APIKey"] != "secret" {
		t.Errorf("credentials not injected: %v", creds)
	}

	if !result.Approved() {
		t.Fatal("expected approved charge")
	}
	if result.Data.Payment.ID != 555 || result.Data.Payment.AuthNumber != "AUTH1" {
		t.Errorf("unexpected payment: %+v", result.Data.Payment)
	}
}

func TestChargeDeclineIsNotAnError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"Status": 0,
			"Data": {
				"Payment": {"ID": 556, "ValidPayment": false, "StatusDescription": "Insufficient funds"}
			}
		}`))
	})

	result, err := client.Charge(context.Background(), &ChargeRequest{})
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.Approved() {
		t.Fatal("expected declined charge")
	}
	if result.DeclineMessage() != "Insufficient funds" {
		t.Errorf("unexpected decline message %q", result.DeclineMessage())
	}
}

func TestChargeEnvelopeRejection(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status": 1, "UserErrorMessage": "Company is blocked"}`))
	})

	result, err := client.Charge(context.Background(), &ChargeRequest{})
	if err != nil {
		t.Fatalf("Charge returned error: %v", err)
	}
	if result.Approved() {
		t.Fatal("expected rejection")
	}
	if result.DeclineMessage() != "Company is blocked" {
		t.Errorf("unexpected message %q", result.DeclineMessage())
	}
}

func TestChargeHTTPFailureMapsToDependencyError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Charge(context.Background(), &ChargeRequest{})
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Errorf("expected dependency error, got %v", err)
	}
}

func TestAuthorizeSetsAuthoriseOnly(t *testing.T) {
	var captured map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"Status": 0, "Data": {"Payment": {"ID": 1, "ValidPayment": true}}}`))
	})

	if _, err := client.Authorize(context.Background(), &ChargeRequest{}); err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if captured["AuthoriseOnly"] != true {
		t.Error("AuthoriseOnly not set on authorize request")
	}
}

func TestRefundEnvelopeErrorBecomesDecline(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status": 2, "UserErrorMessage": "Payment already refunded"}`))
	})

	_, err := client.Refund(context.Background(), &RefundRequest{PaymentID: 555})
	if err == nil {
		t.Fatal("expected refund error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayDeclined {
		t.Errorf("expected gateway declined, got %v", err)
	}
}

func TestListEntitiesDecodesPage(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathListEntities {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"Status": 0,
			"Data": {
				"Entities": [{"ID": 9, "FolderID": 42, "Name": "Widget", "Properties": {"stock": 3}}],
				"TotalCount": 1,
				"PageCount": 1
			}
		}`))
	})

	data, err := client.ListEntities(context.Background(), &ListEntitiesRequest{FolderID: 42})
	if err != nil {
		t.Fatalf("ListEntities returned error: %v", err)
	}
	if len(data.Entities) != 1 || data.Entities[0].ID != 9 {
		t.Errorf("unexpected entities: %+v", data.Entities)
	}
}

func TestCreateDocumentDecodesID(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status": 0, "Data": {"DocumentID": 777, "DocumentNumber": 1001}}`))
	})

	data, err := client.CreateDocument(context.Background(), &CreateDocumentRequest{
		Details: DocumentDetails{Type: DocumentTypeInvoiceReceipt},
	})
	if err != nil {
		t.Fatalf("CreateDocument returned error: %v", err)
	}
	if data.DocumentID != 777 {
		t.Errorf("unexpected document id %d", data.DocumentID)
	}
}
