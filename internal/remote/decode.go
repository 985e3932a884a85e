// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Record is a normalized entity record: lowerCamel field names and
// identifier fields coerced to string, regardless of how the backing
// store represents them.
type Record map[string]any

// listWrapperKeys is the fallback order for object-wrapped list
// responses. Tried only when the payload is not a bare array.
var listWrapperKeys = []string{"records", "items", "data"}

// unwrapList decodes a list payload that is either a bare JSON array or
// an object wrapping the array under one of the known keys.
func unwrapList(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding list response: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		return normalizeSlice(v)
	case map[string]any:
		for _, key := range listWrapperKeys {
			if inner, ok := v[key].([]any); ok {
				return normalizeSlice(inner)
			}
		}
		return nil, fmt.Errorf("list response has no recognized wrapper key")
	default:
		return nil, fmt.Errorf("unexpected list response shape %T", raw)
	}
}

func normalizeSlice(items []any) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list element is %T, not an object", item)
		}
		records = append(records, normalizeRecord(m))
	}
	return records, nil
}

// unwrapRecord decodes a single-record payload, tolerating the same
// wrapper keys as list responses. Returns nil for an empty body.
func unwrapRecord(body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding record response: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	for _, key := range listWrapperKeys {
		if inner, ok := raw[key].(map[string]any); ok {
			return normalizeRecord(inner), nil
		}
	}
	return normalizeRecord(raw), nil
}

// normalizeRecord converts field names to lowerCamel and coerces
// identifier fields to string type.
func normalizeRecord(m map[string]any) Record {
	out := make(Record, len(m))
	for k, v := range m {
		key := snakeToCamel(k)
		if isIdentifierField(key) {
			v = coerceID(v)
		}
		out[key] = v
	}
	return out
}

// denormalizeBody converts lowerCamel field names to the snake_case
// convention the backing store requires.
func denormalizeBody(r Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[camelToSnake(k)] = v
	}
	return out
}

// isIdentifierField reports whether a normalized field name is an
// identifier: "id" itself or any field ending in the Id suffix.
func isIdentifierField(key string) bool {
	return key == "id" || strings.HasSuffix(key, "Id")
}

// coerceID renders an identifier value as a string. Integer-backed ids
// become their decimal representation; nil stays nil so absent foreign
// keys survive the round trip.
func coerceID(v any) any {
	switch id := v.(type) {
	case nil:
		return nil
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", id), ".0")
	default:
		return fmt.Sprintf("%v", id)
	}
}

// snakeToCamel converts snake_case to lowerCamel. Keys already in
// camelCase pass through unchanged. The "_id" suffix maps to "Id".
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var sb strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			sb.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}

// camelToSnake converts lowerCamel to snake_case.
func camelToSnake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Decode converts a normalized record into a typed value via its JSON
// tags.
func Decode(rec Record, v any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

// Encode converts a typed value into a normalized record via its JSON
// tags.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return rec, nil
}
