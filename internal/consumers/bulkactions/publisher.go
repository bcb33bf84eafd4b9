package bulkactions

import (
	"context"
	"encoding/json"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sumitpay/billing-backend/internal/bulk"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

// Publisher enqueues validated batches on the bulk action topic.
type Publisher struct {
	topic *pubsub.Publisher
}

func NewPublisher(topic *pubsub.Publisher) *Publisher {
	return &Publisher{topic: topic}
}

func (p *Publisher) PublishBulkBatch(ctx context.Context, batch bulk.Batch) error {
	if p.topic == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "bulk action topic not configured")
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bulk batch")
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish bulk batch")
	}
	return nil
}
