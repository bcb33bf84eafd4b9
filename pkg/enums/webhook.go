package enums

import "fmt"

// WebhookSource identifies the inbound endpoint a webhook arrived on.
type WebhookSource string

const (
	WebhookSourceSumit WebhookSource = "sumit"
	WebhookSourceCRM   WebhookSource = "crm"
	WebhookSourceBit   WebhookSource = "bit"
)

var validWebhookSources = []WebhookSource{
	WebhookSourceSumit,
	WebhookSourceCRM,
	WebhookSourceBit,
}

func (s WebhookSource) String() string {
	return string(s)
}

func (s WebhookSource) IsValid() bool {
	for _, candidate := range validWebhookSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWebhookSource converts raw input into a WebhookSource.
func ParseWebhookSource(value string) (WebhookSource, error) {
	for _, candidate := range validWebhookSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook source %q", value)
}

// WebhookStatus tracks the processing lifecycle of an audit record.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusPending,
	WebhookStatusProcessed,
	WebhookStatusFailed,
}

func (s WebhookStatus) String() string {
	return string(s)
}

func (s WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
