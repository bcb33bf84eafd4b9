package types

// SuccessEnvelope wraps successful API payloads.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps API errors.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the acknowledgement body returned to webhook senders.
// Providers only care about the 200; the body aids manual replay and support.
type WebhookAck struct {
	Success   bool   `json:"success"`
	Queued    bool   `json:"queued"`
	Message   string `json:"message"`
	WebhookID string `json:"webhook_id,omitempty"`
}
