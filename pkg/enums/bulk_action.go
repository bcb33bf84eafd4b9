package enums

import "fmt"

// BulkActionType names the per-record operations the bulk executor runs.
type BulkActionType string

const (
	BulkActionCancelSubscription BulkActionType = "cancel_subscription"
	BulkActionChargeSubscription BulkActionType = "charge_subscription"
	BulkActionSyncToken          BulkActionType = "sync_token"
	BulkActionEmailDocument      BulkActionType = "email_document"
)

var validBulkActionTypes = []BulkActionType{
	BulkActionCancelSubscription,
	BulkActionChargeSubscription,
	BulkActionSyncToken,
	BulkActionEmailDocument,
}

func (b BulkActionType) String() string {
	return string(b)
}

func (b BulkActionType) IsValid() bool {
	for _, candidate := range validBulkActionTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBulkActionType converts raw input into a BulkActionType.
func ParseBulkActionType(value string) (BulkActionType, error) {
	for _, candidate := range validBulkActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bulk action type %q", value)
}
