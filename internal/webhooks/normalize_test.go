package webhooks

import (
	"encoding/json"
	"testing"
)

func TestNormalizePayloadObjectPassesThrough(t *testing.T) {
	body := []byte(`{"EventType":"card.updated","Token":"tok_1"}`)
	payload, err := NormalizePayload(body, "application/json")
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["Token"] != "tok_1" {
		t.Errorf("unexpected payload %v", fields)
	}
}

func TestNormalizePayloadPositionalArray(t *testing.T) {
	body := []byte(`[42, 9001, "update", {"stock": 3}]`)
	payload, err := NormalizePayload(body, "application/json")
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if folder, ok := firstInt64(fields, "FolderID"); !ok || folder != 42 {
		t.Errorf("FolderID not normalized: %v", fields)
	}
	if entity, ok := firstInt64(fields, "EntityID"); !ok || entity != 9001 {
		t.Errorf("EntityID not normalized: %v", fields)
	}
	if action := firstString(fields, "Action"); action != "update" {
		t.Errorf("Action not normalized: %q", action)
	}
	if _, ok := fields["Properties"]; !ok {
		t.Error("Properties not carried over")
	}
}

func TestNormalizePayloadShortArrayRejected(t *testing.T) {
	if _, err := NormalizePayload([]byte(`[1, 2]`), "application/json"); err == nil {
		t.Fatal("expected error for short positional array")
	}
}

func TestNormalizePayloadFormEncoded(t *testing.T) {
	body := []byte(`documentid=777&customerid=12`)
	payload, err := NormalizePayload(body, "application/x-www-form-urlencoded")
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if docID, ok := firstInt64(fields, "documentid"); !ok || docID != 777 {
		t.Errorf("documentid not parsed: %v", fields)
	}
}

func TestNormalizePayloadEmptyBody(t *testing.T) {
	payload, err := NormalizePayload(nil, "application/json")
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	if string(payload) != "{}" {
		t.Errorf("expected empty object, got %s", payload)
	}
}

func TestNormalizePayloadMalformedJSON(t *testing.T) {
	if _, err := NormalizePayload([]byte(`{"broken"`), "application/json"); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestDetectEventTypeURLWins(t *testing.T) {
	payload := json.RawMessage(`{"event_type":"card.created"}`)
	if got := DetectEventType("card.deleted", payload); got != "card.deleted" {
		t.Errorf("declared type must win, got %q", got)
	}
}

func TestDetectEventTypeFromPayloadFields(t *testing.T) {
	cases := map[string]string{
		`{"event_type":"card.created"}`: "card.created",
		`{"EventType":"card.updated"}`:  "card.updated",
		`{"action":"update"}`:           "update",
		`{"Action":"delete"}`:           "delete",
		`{"unrelated":true}`:            "",
	}
	for raw, want := range cases {
		if got := DetectEventType("", json.RawMessage(raw)); got != want {
			t.Errorf("payload %s: got %q want %q", raw, got, want)
		}
	}
}
