package sumit

import (
	"context"

	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

const (
	pathCreateDocument = "/accounting/documents/create/"
	pathGetDocument    = "/accounting/documents/getdetails/"
	pathSendDocument   = "/accounting/documents/sendbyemail/"
)

// Document type names accepted by the gateway.
const (
	DocumentTypeInvoice        = "Invoice"
	DocumentTypeReceipt        = "Receipt"
	DocumentTypeInvoiceReceipt = "InvoiceReceipt"
	DocumentTypeOrder          = "Order"
)

// CreateDocument creates an accounting document (invoice, receipt, order).
func (c *Client) CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*CreateDocumentData, error) {
	var data CreateDocumentData
	envelope, err := c.post(ctx, pathCreateDocument, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return &data, nil
}

// GetDocument fetches an existing document's details.
func (c *Client) GetDocument(ctx context.Context, req *GetDocumentRequest) (*DocumentData, error) {
	var data DocumentData
	envelope, err := c.post(ctx, pathGetDocument, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return &data, nil
}

// SendDocumentEmail emails a document to the customer on file, or to the
// explicit address when provided.
func (c *Client) SendDocumentEmail(ctx context.Context, req *SendDocumentRequest) error {
	envelope, err := c.post(ctx, pathSendDocument, c.readTimeout, req, nil)
	if err != nil {
		return err
	}
	if !envelope.OK() {
		return pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return nil
}
