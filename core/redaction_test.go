package core

import "testing"

func TestRedactSensitiveMapRedactsNestedSecrets(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"entity_id": "contact_1",
		"api_key":   "plain",
		"nested": map[string]any{
			"password": "hunter2",
			"city":     "Oslo",
		},
		"list": []any{
			map[string]any{"access_key": "plain"},
			"value",
		},
	})

	if redacted["api_key"] != RedactedValue {
		t.Fatalf("expected api_key redacted, got %#v", redacted["api_key"])
	}
	if redacted["entity_id"] != "contact_1" {
		t.Fatalf("expected traceability key untouched, got %#v", redacted["entity_id"])
	}
	nested := redacted["nested"].(map[string]any)
	if nested["password"] != RedactedValue || nested["city"] != "Oslo" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	list := redacted["list"].([]any)
	inner := list[0].(map[string]any)
	if inner["access_key"] != RedactedValue {
		t.Fatalf("expected list element redaction, got %#v", inner)
	}
	if list[1] != "value" {
		t.Fatalf("expected scalar list element untouched, got %#v", list[1])
	}
}

func TestRedactSensitiveMapHandlesEmptyInput(t *testing.T) {
	if out := RedactSensitiveMap(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty map, got %#v", out)
	}
}
