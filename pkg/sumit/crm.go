package sumit

import (
	"context"

	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

const (
	pathListEntities = "/crm/entities/list/"
	pathGetEntity    = "/crm/entities/get/"
)

// ListEntities pages through the CRM records of a folder. Used by the stock
// sync job to mirror gateway-side records locally.
func (c *Client) ListEntities(ctx context.Context, req *ListEntitiesRequest) (*ListEntitiesData, error) {
	var data ListEntitiesData
	envelope, err := c.post(ctx, pathListEntities, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	return &data, nil
}

// GetEntity fetches a single CRM record by folder and id.
func (c *Client) GetEntity(ctx context.Context, req *GetEntityRequest) (*EntityData, error) {
	var data EntityData
	envelope, err := c.post(ctx, pathGetEntity, c.readTimeout, req, &data)
	if err != nil {
		return nil, err
	}
	if !envelope.OK() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, envelope.Message())
	}
	if data.Entity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "crm entity not found")
	}
	return &data, nil
}
