package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventSubscriptionCharged      OutboxEventType = "subscription.charged"
	EventSubscriptionChargeFailed OutboxEventType = "subscription.charge_failed"
	EventSubscriptionCanceled     OutboxEventType = "subscription.canceled"
	EventSubscriptionCompleted    OutboxEventType = "subscription.completed"
	EventDocumentCreated          OutboxEventType = "document.created"
	EventWebhookFailed            OutboxEventType = "webhook.failed"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateDocument     OutboxAggregateType = "document"
	AggregateWebhook      OutboxAggregateType = "webhook"
)

// OutboxDLQErrorReason classifies why an outbox event was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
