package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

// MethodGateway fetches vaulted payment method details from the gateway.
type MethodGateway interface {
	GetPaymentMethod(ctx context.Context, req *sumit.GetPaymentMethodRequest) (*sumit.PaymentMethodData, error)
}

// Service keeps the local token vault in sync with the gateway.
type Service struct {
	repo    *Repository
	client  *db.Client
	gateway MethodGateway
	logg    *logger.Logger
	nowFn   func() time.Time
}

// ServiceParams collects the token vault dependencies.
type ServiceParams struct {
	Repo    *Repository
	Client  *db.Client
	Gateway MethodGateway
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, errors.New("token repository is required")
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
		logg:    p.Logger,
		nowFn:   nowFn,
	}, nil
}

var _ webhooks.TokenApplier = (*Service)(nil)

// ApplyCardEvent mirrors a card.* webhook into the vault. Events replay
// safely: upserts key on the token reference and deletes tolerate missing
// rows.
func (s *Service) ApplyCardEvent(ctx context.Context, event webhooks.CardEvent) error {
	existing, err := s.find(ctx, event)
	if err != nil {
		return err
	}

	switch event.Action {
	case "created", "updated":
		return s.upsert(ctx, existing, event)
	case "deleted":
		if existing == nil {
			return nil
		}
		return s.repo.Delete(ctx, existing.ID)
	case "archived":
		if existing == nil {
			return nil
		}
		return s.repo.Archive(ctx, existing.ID, s.nowFn())
	default:
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "card_action", event.Action),
				"unrecognized card action, acknowledged")
		}
		return nil
	}
}

func (s *Service) find(ctx context.Context, event webhooks.CardEvent) (*models.PaymentToken, error) {
	if event.Token != "" {
		token, err := s.repo.FindByToken(ctx, event.Token)
		if err != nil || token != nil {
			return token, err
		}
	}
	if event.GatewayID != nil {
		return s.repo.FindByGatewayID(ctx, *event.GatewayID)
	}
	return nil, nil
}

func (s *Service) upsert(ctx context.Context, existing *models.PaymentToken, event webhooks.CardEvent) error {
	if existing == nil {
		if event.Token == "" {
			return errors.New("card event carries no vault token")
		}
		token := models.PaymentToken{
			Token:     event.Token,
			OwnerType: event.OwnerType,
			OwnerID:   event.OwnerID,
			GatewayID: event.GatewayID,
		}
		applyCardMetadata(&token, event)

		if token.OwnerType != "" && token.OwnerID != "" {
			hasDefault, err := s.repo.HasDefault(ctx, token.OwnerType, token.OwnerID)
			if err != nil {
				return err
			}
			// The owner's first card becomes the default automatically.
			token.IsDefault = !hasDefault
		}
		if err := s.repo.Create(ctx, &token); err != nil {
			if db.IsUniqueViolation(err, "ux_payment_tokens_token") {
				return nil
			}
			return err
		}
		return nil
	}

	applyCardMetadata(existing, event)
	if event.GatewayID != nil {
		existing.GatewayID = event.GatewayID
	}
	if event.OwnerType != "" && event.OwnerID != "" {
		existing.OwnerType = event.OwnerType
		existing.OwnerID = event.OwnerID
	}
	return s.repo.Save(ctx, existing)
}

func applyCardMetadata(token *models.PaymentToken, event webhooks.CardEvent) {
	if event.Last4 != "" {
		token.CardLast4 = &event.Last4
	}
	if event.Brand != "" {
		token.CardBrand = &event.Brand
	}
	if event.ExpMonth != 0 {
		token.CardExpMonth = &event.ExpMonth
	}
	if event.ExpYear != 0 {
		token.CardExpYear = &event.ExpYear
	}
}

// SetDefault makes the token the owner's single default card. The clear and
// set run in one transaction so the invariant never lapses.
func (s *Service) SetDefault(ctx context.Context, id uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var token models.PaymentToken
		if err := tx.Where("id = ?", id).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment token not found")
			}
			return err
		}
		if token.ArchivedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "archived token cannot be the default")
		}
		if err := s.repo.ClearDefaultTx(tx, token.OwnerType, token.OwnerID); err != nil {
			return err
		}
		return s.repo.SetDefaultTx(tx, token.ID)
	})
}

// SyncFromGateway refreshes the token's card metadata from the gateway.
// GatewayID holds the remote customer the method is vaulted under.
func (s *Service) SyncFromGateway(ctx context.Context, id uuid.UUID) error {
	if s.gateway == nil {
		return errors.New("payment gateway unavailable")
	}
	token, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if token == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment token not found")
	}
	if token.GatewayID == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "token has no gateway reference to sync from")
	}

	data, err := s.gateway.GetPaymentMethod(ctx, &sumit.GetPaymentMethodRequest{
		CustomerID: *token.GatewayID,
	})
	if err != nil {
		return err
	}
	if data == nil || data.PaymentMethod == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway has no stored payment method")
	}

	method := data.PaymentMethod
	if method.CreditCardLastDigits != "" {
		token.CardLast4 = &method.CreditCardLastDigits
	}
	if method.CreditCardExpirationMonth != 0 {
		token.CardExpMonth = &method.CreditCardExpirationMonth
	}
	if method.CreditCardExpirationYear != 0 {
		token.CardExpYear = &method.CreditCardExpirationYear
	}
	if method.CreditCardToken != "" && method.CreditCardToken != token.Token {
		token.Token = method.CreditCardToken
	}
	return s.repo.Save(ctx, token)
}

// ListForOwner returns the owner's active cards.
func (s *Service) ListForOwner(ctx context.Context, ownerType, ownerID string) ([]models.PaymentToken, error) {
	return s.repo.ListByOwner(ctx, ownerType, ownerID)
}
