package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/outbox/payloads"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

// Gateway is the slice of the payment client the document service calls.
type Gateway interface {
	CreateDocument(ctx context.Context, req *sumit.CreateDocumentRequest) (*sumit.CreateDocumentData, error)
	GetDocument(ctx context.Context, req *sumit.GetDocumentRequest) (*sumit.DocumentData, error)
	SendDocumentEmail(ctx context.Context, req *sumit.SendDocumentRequest) error
}

// Service mirrors gateway accounting documents locally.
type Service struct {
	repo    *Repository
	client  *db.Client
	gateway Gateway
	outbox  *outbox.Service
	logg    *logger.Logger
	nowFn   func() time.Time
}

// ServiceParams collects the document service dependencies.
type ServiceParams struct {
	Repo    *Repository
	Client  *db.Client
	Gateway Gateway
	Outbox  *outbox.Service
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, errors.New("document repository is required")
	}
	if p.Client == nil {
		return nil, errors.New("db client is required")
	}
	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		repo:    p.Repo,
		client:  p.Client,
		gateway: p.Gateway,
		outbox:  p.Outbox,
		logg:    p.Logger,
		nowFn:   nowFn,
	}, nil
}

// RecordChargeDocument mirrors the accounting document for a cleared
// recurring charge. When the charge response carries no document id the
// gateway is asked to create an order document first. Replayed charges are
// absorbed by the remote-id unique index.
func (s *Service) RecordChargeDocument(ctx context.Context, tx *gorm.DB, sub *models.Subscription, result *sumit.ChargeResult) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if sub == nil || result == nil {
		return errors.New("subscription and charge result required")
	}

	docType := enums.DocumentTypeInvoiceReceipt
	var remoteID int64
	if result.Data.DocumentID != nil {
		remoteID = *result.Data.DocumentID
	} else {
		if s.gateway == nil {
			return errors.New("charge carried no document and no gateway is configured")
		}
		created, err := s.gateway.CreateDocument(ctx, &sumit.CreateDocumentRequest{
			Details: sumit.DocumentDetails{
				Customer:          sumit.Customer{ExternalIdentifier: sub.SubscriberID, SearchMode: "Automatic"},
				Type:              sumit.DocumentTypeOrder,
				Currency:          sub.Currency,
				Description:       fmt.Sprintf("Subscription billing cycle %d", sub.CompletedCycles),
				ExternalReference: sub.ID.String(),
			},
			Items: []sumit.DocumentItem{{
				Item:      sumit.ChargeItemDetails{Name: "Subscription"},
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: sub.Amount,
			}},
			VATIncluded: true,
		})
		if err != nil {
			return err
		}
		remoteID = created.DocumentID
		docType = enums.DocumentTypeOrder
	}

	doc := models.Document{
		DocumentID:  remoteID,
		Type:        docType,
		CustomerID:  result.Data.CustomerID,
		Amount:      sub.Amount,
		Currency:    sub.Currency,
		RawResponse: result.Envelope.Raw,
	}
	if err := s.repo.CreateTx(tx, &doc, sub.ID); err != nil {
		if db.IsUniqueViolation(err, "ux_documents_remote_id") {
			return nil
		}
		return err
	}

	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDocumentCreated,
		AggregateType: enums.AggregateDocument,
		AggregateID:   doc.ID,
		Data: payloads.DocumentCreatedEvent{
			DocumentID:       doc.ID,
			RemoteDocumentID: doc.DocumentID,
			Type:             doc.Type.String(),
			SubscriptionIDs:  []uuid.UUID{sub.ID},
		},
		OccurredAt: s.nowFn(),
	})
}

// EmailDocument sends the document through the gateway and marks it emailed.
func (s *Service) EmailDocument(ctx context.Context, id uuid.UUID, address string) error {
	if s.gateway == nil {
		return errors.New("payment gateway unavailable")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	err = s.gateway.SendDocumentEmail(ctx, &sumit.SendDocumentRequest{
		DocumentID:   doc.DocumentID,
		EmailAddress: address,
		Original:     true,
	})
	if err != nil {
		return err
	}
	return s.repo.MarkEmailed(ctx, doc.ID, s.nowFn())
}

// SyncAllInput narrows a document backfill run.
type SyncAllInput struct {
	CustomerID *int64
	Days       int
	Force      bool
	DryRun     bool
}

// SyncSummary reports a backfill run per record, never as a unit.
type SyncSummary struct {
	Scanned int
	Updated int
	Skipped int
	Failed  int
}

// SyncAll refreshes local document rows from the gateway. By default only
// drafts are rescanned; Force widens the scan to every matching document.
func (s *Service) SyncAll(ctx context.Context, input SyncAllInput) (SyncSummary, error) {
	if s.gateway == nil {
		return SyncSummary{}, errors.New("payment gateway unavailable")
	}

	filter := ListFilter{
		CustomerID: input.CustomerID,
		DraftsOnly: !input.Force,
	}
	if input.Days > 0 {
		cutoff := s.nowFn().AddDate(0, 0, -input.Days)
		filter.CreatedAfter = &cutoff
	}
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return SyncSummary{}, err
	}

	summary := SyncSummary{Scanned: len(docs)}
	if input.DryRun {
		summary.Skipped = len(docs)
		return summary, nil
	}

	var errs error
	for i := range docs {
		doc := &docs[i]
		if err := s.refresh(ctx, doc); err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("document %d: %w", doc.DocumentID, err))
			continue
		}
		summary.Updated++
	}
	return summary, errs
}

func (s *Service) refresh(ctx context.Context, doc *models.Document) error {
	data, err := s.gateway.GetDocument(ctx, &sumit.GetDocumentRequest{DocumentID: doc.DocumentID})
	if err != nil {
		return err
	}
	if parsed, ok := parseRemoteDocumentType(data.Type); ok {
		doc.Type = parsed
	}
	if data.CustomerID != nil {
		doc.CustomerID = data.CustomerID
	}
	// A document the gateway serves details for is no longer a draft.
	doc.IsDraft = false
	return s.repo.Save(ctx, doc)
}

func parseRemoteDocumentType(remote string) (enums.DocumentType, bool) {
	switch strings.ToLower(strings.ReplaceAll(remote, " ", "")) {
	case "invoice":
		return enums.DocumentTypeInvoice, true
	case "receipt":
		return enums.DocumentTypeReceipt, true
	case "invoicereceipt":
		return enums.DocumentTypeInvoiceReceipt, true
	case "order":
		return enums.DocumentTypeOrder, true
	}
	return "", false
}
