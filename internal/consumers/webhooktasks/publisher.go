package webhooktasks

import (
	"context"
	"encoding/json"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

// Publisher enqueues reconciliation tasks on the webhook task topic.
type Publisher struct {
	topic *pubsub.Publisher
}

func NewPublisher(topic *pubsub.Publisher) *Publisher {
	return &Publisher{topic: topic}
}

func (p *Publisher) PublishWebhookTask(ctx context.Context, webhookID uuid.UUID) error {
	if p.topic == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook task topic not configured")
	}
	data, err := json.Marshal(Task{WebhookID: webhookID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode webhook task")
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish webhook task")
	}
	return nil
}
