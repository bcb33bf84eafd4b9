package webhooks

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
)

// Positional-array payload convention: some CRM deliveries arrive as a raw
// indexed array instead of named fields. Order is fixed by the provider.
const (
	posFolderID = iota
	posEntityID
	posAction
	posProperties
)

// NormalizePayload parses a webhook body (JSON object, JSON array, or form
// encoding) into a flat JSON object. Positional arrays are mapped onto the
// named FolderID/EntityID/Action/Properties fields.
func NormalizePayload(body []byte, contentType string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return json.RawMessage(`{}`), nil
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(trimmed)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed form payload")
		}
		flat := make(map[string]any, len(values))
		for key := range values {
			flat[key] = values.Get(key)
		}
		encoded, err := json.Marshal(flat)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode form payload")
		}
		return encoded, nil
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed json payload")
		}
		return json.RawMessage(body), nil

	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed json payload")
		}
		return normalizePositional(arr)

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payload format")
	}
}

func normalizePositional(arr []json.RawMessage) (json.RawMessage, error) {
	if len(arr) < 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "positional payload too short")
	}
	obj := map[string]json.RawMessage{
		"FolderID": arr[posFolderID],
		"EntityID": arr[posEntityID],
		"Action":   arr[posAction],
	}
	if len(arr) > posProperties {
		obj["Properties"] = arr[posProperties]
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode positional payload")
	}
	return encoded, nil
}

// DetectEventType resolves the event type with URL-declared types taking
// precedence over payload fields.
func DetectEventType(declared string, payload json.RawMessage) string {
	if trimmed := strings.TrimSpace(declared); trimmed != "" {
		return trimmed
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"event_type", "EventType", "action", "Action"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// firstString returns the first present, non-empty string value among keys.
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// firstInt64 returns the first present integer value among keys, accepting
// both JSON numbers and numeric strings.
func firstInt64(fields map[string]json.RawMessage, keys ...string) (int64, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var number int64
		if err := json.Unmarshal(raw, &number); err == nil {
			return number, true
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if parsed, parseErr := strconv.ParseInt(strings.TrimSpace(text), 10, 64); parseErr == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
