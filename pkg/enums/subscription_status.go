package enums

import "fmt"

// SubscriptionStatus tracks the local subscription lifecycle.
//
// "completed" is a dedicated terminal state for subscriptions that exhausted
// total_cycles, kept separate from user/admin cancellation.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCanceled  SubscriptionStatus = "canceled"
	SubscriptionStatusFailed    SubscriptionStatus = "failed"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
	SubscriptionStatusCanceled,
	SubscriptionStatusFailed,
	SubscriptionStatusExpired,
	SubscriptionStatusCompleted,
}

// subscriptionTransitions encodes the allowed state machine edges.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending: {
		SubscriptionStatusActive,
		SubscriptionStatusCanceled,
		SubscriptionStatusExpired,
	},
	SubscriptionStatusActive: {
		SubscriptionStatusActive, // self-loop on a successful cycle charge
		SubscriptionStatusPaused,
		SubscriptionStatusCanceled,
		SubscriptionStatusFailed,
		SubscriptionStatusExpired,
		SubscriptionStatusCompleted,
	},
	SubscriptionStatusPaused: {
		SubscriptionStatusActive,
		SubscriptionStatusCanceled,
		SubscriptionStatusExpired,
	},
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is absorbing: no further charge
// attempts may be scheduled from it.
func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusCanceled, SubscriptionStatusFailed,
		SubscriptionStatusExpired, SubscriptionStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	for _, candidate := range subscriptionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
