// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"testing"
)

func TestUnwrapListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id": 1}, {"id": 2}]`, 2},
		{"records wrapper", `{"records": [{"id": 1}]}`, 1},
		{"items wrapper", `{"items": [{"id": 1}]}`, 1},
		{"data wrapper", `{"data": [{"id": 1}, {"id": 2}, {"id": 3}]}`, 3},
		{"empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := unwrapList([]byte(tt.body))
			if err != nil {
				t.Fatalf("unwrapList: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("records = %d, want %d", len(records), tt.want)
			}
		})
	}
}

func TestUnwrapListUnknownShape(t *testing.T) {
	if _, err := unwrapList([]byte(`{"entries": []}`)); err == nil {
		t.Error("expected error for unknown wrapper key")
	}
	if _, err := unwrapList([]byte(`"nope"`)); err == nil {
		t.Error("expected error for scalar payload")
	}
}

func TestUnwrapRecordWrappers(t *testing.T) {
	rec, err := unwrapRecord([]byte(`{"data": {"id": 7, "name": "x"}}`))
	if err != nil {
		t.Fatalf("unwrapRecord: %v", err)
	}
	if rec["id"] != "7" || rec["name"] != "x" {
		t.Errorf("rec = %v", rec)
	}

	rec, err = unwrapRecord([]byte(``))
	if err != nil || rec != nil {
		t.Errorf("empty body: rec = %v, err = %v, want nil, nil", rec, err)
	}
}

func TestNormalizeRecordFieldNames(t *testing.T) {
	rec := normalizeRecord(map[string]any{
		"customer_id":      "c-1",
		"last_modified_by": "u-1",
		"alreadyCamel":     true,
	})
	if rec["customerId"] != "c-1" {
		t.Errorf("customerId = %v", rec["customerId"])
	}
	if rec["lastModifiedBy"] != "u-1" {
		t.Errorf("lastModifiedBy = %v", rec["lastModifiedBy"])
	}
	if rec["alreadyCamel"] != true {
		t.Error("camelCase keys must pass through unchanged")
	}
}

func TestIDCoercion(t *testing.T) {
	rec, err := unwrapRecord([]byte(`{"id": 42, "lead_id": "abc", "product_id": null, "value": 42}`))
	if err != nil {
		t.Fatalf("unwrapRecord: %v", err)
	}
	if rec["id"] != "42" {
		t.Errorf("id = %v (%T), want \"42\"", rec["id"], rec["id"])
	}
	if rec["leadId"] != "abc" {
		t.Errorf("leadId = %v", rec["leadId"])
	}
	if rec["productId"] != nil {
		t.Errorf("productId = %v, want nil", rec["productId"])
	}
	// Non-identifier numerics keep their numeric type.
	if _, ok := rec["value"].(string); ok {
		t.Error("value must not be coerced to string")
	}
}

func TestDenormalizeBody(t *testing.T) {
	out := denormalizeBody(Record{
		"customerId":     "c-1",
		"lastModifiedBy": "u-1",
		"name":           "x",
	})
	if _, ok := out["customer_id"]; !ok {
		t.Errorf("out = %v, want customer_id key", out)
	}
	if _, ok := out["last_modified_by"]; !ok {
		t.Errorf("out = %v, want last_modified_by key", out)
	}
	if _, ok := out["name"]; !ok {
		t.Errorf("out = %v, want name key", out)
	}
}

func TestCamelSnakeRoundTrip(t *testing.T) {
	pairs := map[string]string{
		"customerId":     "customer_id",
		"lastModifiedAt": "last_modified_at",
		"name":           "name",
	}
	for camel, snake := range pairs {
		if got := camelToSnake(camel); got != snake {
			t.Errorf("camelToSnake(%q) = %q, want %q", camel, got, snake)
		}
		if got := snakeToCamel(snake); got != camel {
			t.Errorf("snakeToCamel(%q) = %q, want %q", snake, got, camel)
		}
	}
}
