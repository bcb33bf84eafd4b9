package sumit

import (
	"context"

	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

const (
	pathCharge              = "/billing/payments/charge/"
	pathRefund              = "/billing/payments/refund/"
	pathCapture             = "/billing/payments/capture/"
	pathListPayments        = "/billing/payments/list/"
	pathSetPaymentMethod    = "/billing/paymentmethods/setforcustomer/"
	pathGetPaymentMethod    = "/billing/paymentmethods/getforcustomer/"
	pathRemovePaymentMethod = "/billing/paymentmethods/removeforcustomer/"
)

// Charge runs a payment against a stored method or single-use token. A
// returned error means the request never completed; a non-approved result
// with a nil error is a gateway rejection or card decline.
func (c *Client) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	var data ChargeData
	envelope, err := c.post(ctx, pathCharge, c.chargeTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	result := &ChargeResult{Envelope: envelope, Data: data}
	if c.logger != nil {
		fields := map[string]any{
			"gateway_status": envelope.Status,
			"approved":       result.Approved(),
		}
		if data.Payment != nil {
			fields["payment_id"] = data.Payment.ID
		}
		c.logger.Info(c.logger.WithFields(ctx, fields), "sumit charge completed")
	}
	return result, nil
}

// Authorize places a hold without capturing funds.
func (c *Client) Authorize(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	req.AuthoriseOnly = true
	return c.Charge(ctx, req)
}

// Capture settles a previously authorized payment.
func (c *Client) Capture(ctx context.Context, req *CapturePaymentRequest) (*ChargeResult, error) {
	var data ChargeData
	envelope, err := c.post(ctx, pathCapture, c.chargeTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{Envelope: envelope, Data: data}, nil
}

// Refund reverses a payment. A nil amount refunds the full payment.
func (c *Client) Refund(ctx context.Context, req *RefundRequest) (*ChargeResult, error) {
	var data ChargeData
	envelope, err := c.post(ctx, pathRefund, c.chargeTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayDeclined, envelope.Message())
	}
	return &ChargeResult{Envelope: envelope, Data: data}, nil
}

// ListPayments returns payments recorded on the gateway for reconciliation.
func (c *Client) ListPayments(ctx context.Context, req *ListPaymentsRequest) (*ListPaymentsData, error) {
	var data ListPaymentsData
	envelope, err := c.post(ctx, pathListPayments, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return &data, nil
}

// SetPaymentMethod stores a tokenized card on the gateway customer.
func (c *Client) SetPaymentMethod(ctx context.Context, req *SetPaymentMethodRequest) (*PaymentMethodData, error) {
	var data PaymentMethodData
	envelope, err := c.post(ctx, pathSetPaymentMethod, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayDeclined, envelope.Message())
	}
	return &data, nil
}

// GetPaymentMethod returns the stored card for a gateway customer.
func (c *Client) GetPaymentMethod(ctx context.Context, req *GetPaymentMethodRequest) (*PaymentMethodData, error) {
	var data PaymentMethodData
	envelope, err := c.post(ctx, pathGetPaymentMethod, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return &data, nil
}

// RemovePaymentMethod detaches the stored card from a gateway customer.
func (c *Client) RemovePaymentMethod(ctx context.Context, req *RemovePaymentMethodRequest) error {
	envelope, err := c.post(ctx, pathRemovePaymentMethod, c.readTimeout, req, nil)
	if err != nil {
		return err
	}
	if !envelope.OK() {
		return pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return nil
}
