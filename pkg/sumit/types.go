package sumit

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Credentials authenticate every SUMIT API request.
type Credentials struct {
	CompanyID int64  `json:"CompanyID"`
	APIKey    string `json:"APIKey"`
}

// credentialed is implemented by every request body so the client can
// inject credentials centrally.
type credentialed interface {
	setCredentials(Credentials)
}

// RequestBase embeds credentials into request payloads.
type RequestBase struct {
	Credentials Credentials `json:"Credentials"`
}

func (r *RequestBase) setCredentials(c Credentials) {
	r.Credentials = c
}

// Envelope is the standard SUMIT response wrapper. Status zero means the
// request was accepted; anything else carries an operator-facing message.
type Envelope struct {
	Status           int             `json:"Status"`
	UserErrorMessage string          `json:"UserErrorMessage"`
	TechnicalDetails string          `json:"TechnicalErrorDetails"`
	Data             json.RawMessage `json:"Data"`
	Raw              json.RawMessage `json:"-"`
}

// OK reports whether the gateway accepted the request at the envelope level.
// A valid envelope can still carry a declined payment in its data.
func (e *Envelope) OK() bool {
	return e != nil && e.Status == 0
}

// Message returns the best human-readable failure description.
func (e *Envelope) Message() string {
	if e == nil {
		return ""
	}
	if e.UserErrorMessage != "" {
		return e.UserErrorMessage
	}
	return e.TechnicalDetails
}

// Customer identifies or creates the paying customer on the gateway side.
type Customer struct {
	ID         *int64 `json:"ID,omitempty"`
	Name       string `json:"Name,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
	Phone      string `json:"Phone,omitempty"`
	ExternalIdentifier string `json:"ExternalIdentifier,omitempty"`
	SearchMode string `json:"SearchMode,omitempty"`
}

// PaymentMethod references a stored card token or raw card details.
type PaymentMethod struct {
	ID                  *int64 `json:"ID,omitempty"`
	CustomerID          *int64 `json:"CustomerID,omitempty"`
	CreditCardToken     string `json:"CreditCard_Token,omitempty"`
	CreditCardNumber    string `json:"CreditCard_Number,omitempty"`
	CreditCardLastDigits string `json:"CreditCard_LastDigits,omitempty"`
	CreditCardExpirationMonth int `json:"CreditCard_ExpirationMonth,omitempty"`
	CreditCardExpirationYear  int `json:"CreditCard_ExpirationYear,omitempty"`
	CreditCardCVV       string `json:"CreditCard_CVV,omitempty"`
	CreditCardCitizenID string `json:"CreditCard_CitizenID,omitempty"`
	Type                string `json:"Type,omitempty"`
}

// ChargeItem is one line on a charge or document.
type ChargeItem struct {
	Item        ChargeItemDetails `json:"Item"`
	Quantity    decimal.Decimal   `json:"Quantity"`
	UnitPrice   decimal.Decimal   `json:"UnitPrice"`
	Description string            `json:"Description,omitempty"`
}

// ChargeItemDetails names the catalog item behind a charge line.
type ChargeItemDetails struct {
	ID   *int64 `json:"ID,omitempty"`
	Name string `json:"Name,omitempty"`
}

// ChargeRequest charges (or authorizes) a payment method.
type ChargeRequest struct {
	RequestBase
	Customer          Customer        `json:"Customer"`
	PaymentMethod     *PaymentMethod  `json:"PaymentMethod,omitempty"`
	SingleUseToken    string          `json:"SingleUseToken,omitempty"`
	Items             []ChargeItem    `json:"Items"`
	Payments          int             `json:"Payments_Count,omitempty"`
	Currency          string          `json:"Currency,omitempty"`
	AuthoriseOnly     bool            `json:"AuthoriseOnly,omitempty"`
	DocumentType      string          `json:"DocumentType,omitempty"`
	DraftDocument     bool            `json:"DraftDocument,omitempty"`
	SendDocumentByEmail bool          `json:"SendDocumentByEmail,omitempty"`
	VATIncluded       bool            `json:"VATIncluded"`
	ExternalReference string          `json:"ExternalReference,omitempty"`
	UpdateCustomerOnSuccess bool      `json:"UpdateCustomerOnSuccess,omitempty"`
}

// Payment is the gateway's record of an attempted charge.
type Payment struct {
	ID                int64           `json:"ID"`
	CustomerID        int64           `json:"CustomerID"`
	Amount            decimal.Decimal `json:"Amount"`
	Currency          string          `json:"Currency"`
	AuthNumber        string          `json:"AuthNumber"`
	ValidPayment      bool            `json:"ValidPayment"`
	StatusDescription string          `json:"StatusDescription"`
	FirstPaymentAmount decimal.Decimal `json:"FirstPaymentAmount"`
	NonFirstPaymentAmount decimal.Decimal `json:"NonFirstPaymentAmount"`
	Date              string          `json:"Date"`
	PaymentMethod     *PaymentMethod  `json:"PaymentMethod,omitempty"`
}

// ChargeData is the decoded Data section of a charge response.
type ChargeData struct {
	Payment    *Payment `json:"Payment"`
	DocumentID *int64   `json:"DocumentID"`
	CustomerID *int64   `json:"CustomerID"`
	AuthNumber string   `json:"AuthNumber"`
}

// ChargeResult pairs the envelope with the decoded charge data so callers
// can distinguish transport failures, gateway rejections and card declines.
type ChargeResult struct {
	Envelope *Envelope
	Data     ChargeData
}

// Approved reports whether the gateway accepted the request and the payment
// cleared.
func (r *ChargeResult) Approved() bool {
	return r != nil && r.Envelope.OK() && r.Data.Payment != nil && r.Data.Payment.ValidPayment
}

// DeclineMessage returns the most specific failure description available.
func (r *ChargeResult) DeclineMessage() string {
	if r == nil {
		return ""
	}
	if r.Data.Payment != nil && r.Data.Payment.StatusDescription != "" {
		return r.Data.Payment.StatusDescription
	}
	return r.Envelope.Message()
}

// RefundRequest reverses a prior payment, fully or partially.
type RefundRequest struct {
	RequestBase
	PaymentID int64            `json:"PaymentID"`
	Amount    *decimal.Decimal `json:"Amount,omitempty"`
	Reason    string           `json:"Reason,omitempty"`
}

// CapturePaymentRequest captures a previously authorized payment.
type CapturePaymentRequest struct {
	RequestBase
	AuthoriseTransactionID int64            `json:"AuthoriseTransactionID"`
	Amount                 *decimal.Decimal `json:"Amount,omitempty"`
}

// ListPaymentsRequest pages through payments recorded on the gateway.
type ListPaymentsRequest struct {
	RequestBase
	CustomerID *int64 `json:"CustomerID,omitempty"`
	FromDate   string `json:"FromDate,omitempty"`
	ToDate     string `json:"ToDate,omitempty"`
}

// ListPaymentsData is the decoded Data section of a payment list response.
type ListPaymentsData struct {
	Payments []Payment `json:"Payments"`
}

// SetPaymentMethodRequest stores a tokenized payment method on a customer.
type SetPaymentMethodRequest struct {
	RequestBase
	Customer      Customer      `json:"Customer"`
	PaymentMethod PaymentMethod `json:"PaymentMethod"`
	SingleUseToken string       `json:"SingleUseToken,omitempty"`
}

// GetPaymentMethodRequest fetches the stored method for a customer.
type GetPaymentMethodRequest struct {
	RequestBase
	CustomerID int64 `json:"CustomerID"`
}

// PaymentMethodData is the decoded Data section for payment method calls.
type PaymentMethodData struct {
	PaymentMethod *PaymentMethod `json:"PaymentMethod"`
	CustomerID    *int64         `json:"CustomerID"`
}

// RemovePaymentMethodRequest detaches the stored method from a customer.
type RemovePaymentMethodRequest struct {
	RequestBase
	CustomerID int64 `json:"CustomerID"`
}

// DocumentItem is one line on an accounting document.
type DocumentItem struct {
	Item        ChargeItemDetails `json:"Item"`
	Quantity    decimal.Decimal   `json:"Quantity"`
	UnitPrice   decimal.Decimal   `json:"UnitPrice"`
	Description string            `json:"Description,omitempty"`
}

// CreateDocumentRequest creates an invoice, receipt or order document.
type CreateDocumentRequest struct {
	RequestBase
	Details   DocumentDetails `json:"Details"`
	Items     []DocumentItem  `json:"Items"`
	VATIncluded bool          `json:"VATIncluded"`
}

// DocumentDetails carries the document header fields.
type DocumentDetails struct {
	Customer     Customer `json:"Customer"`
	Type         string   `json:"Type"`
	Description  string   `json:"Description,omitempty"`
	Currency     string   `json:"Currency,omitempty"`
	IsDraft      bool     `json:"IsDraft,omitempty"`
	Language     string   `json:"Language,omitempty"`
	ExternalReference string `json:"ExternalReference,omitempty"`
}

// CreateDocumentData is the decoded Data section of a document response.
type CreateDocumentData struct {
	DocumentID     int64  `json:"DocumentID"`
	DocumentNumber int64  `json:"DocumentNumber"`
	CustomerID     *int64 `json:"CustomerID"`
	DocumentDownloadURL string `json:"DocumentDownloadURL"`
}

// SendDocumentRequest emails an existing document to its customer.
type SendDocumentRequest struct {
	RequestBase
	DocumentID   int64  `json:"DocumentID"`
	EmailAddress string `json:"EmailAddress,omitempty"`
	Original     bool   `json:"Original"`
}

// GetDocumentRequest fetches a single document's details.
type GetDocumentRequest struct {
	RequestBase
	DocumentID int64 `json:"DocumentID"`
}

// DocumentData is the decoded Data section of a document fetch.
type DocumentData struct {
	DocumentID     int64  `json:"DocumentID"`
	DocumentNumber int64  `json:"DocumentNumber"`
	Type           string `json:"Type"`
	CustomerID     *int64 `json:"CustomerID"`
	DocumentDownloadURL string `json:"DocumentDownloadURL"`
}

// ListEntitiesRequest pages through CRM entities inside a folder.
type ListEntitiesRequest struct {
	RequestBase
	FolderID     int64  `json:"FolderID"`
	PageSize     int    `json:"PageSize,omitempty"`
	PageNumber   int    `json:"PageNumber,omitempty"`
	UpdatedAfter string `json:"UpdatedAfter,omitempty"`
}

// Entity is one CRM record with its dynamic properties.
type Entity struct {
	ID         int64                      `json:"ID"`
	FolderID   int64                      `json:"FolderID"`
	Name       string                     `json:"Name"`
	Properties map[string]json.RawMessage `json:"Properties"`
	UpdatedAt  string                     `json:"UpdatedAt"`
}

// ListEntitiesData is the decoded Data section of a CRM entity list.
type ListEntitiesData struct {
	Entities   []Entity `json:"Entities"`
	TotalCount int      `json:"TotalCount"`
	PageNumber int      `json:"PageNumber"`
	PageCount  int      `json:"PageCount"`
}

// GetEntityRequest fetches one CRM entity by folder and id.
type GetEntityRequest struct {
	RequestBase
	FolderID int64 `json:"FolderID"`
	EntityID int64 `json:"EntityID"`
}

// EntityData is the decoded Data section of a CRM entity fetch.
type EntityData struct {
	Entity *Entity `json:"Entity"`
}
