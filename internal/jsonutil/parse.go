// Package jsonutil pulls JSON out of model responses that may wrap it in
// markdown code fences or surrounding prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoObject is returned when text has no {...} span.
var ErrNoObject = errors.New("no JSON object found")

// ExtractObject returns the span from the first '{' to the last '}' in text.
// The span is not validated; callers decide what to do when it is not JSON.
func ExtractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", ErrNoObject
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", ErrNoObject
	}
	return text[start : end+1], nil
}

// ParseObject extracts the outermost object from raw and decodes it into a
// field map. Values are left undecoded so callers can pick fields leniently.
func ParseObject(raw string) (map[string]json.RawMessage, error) {
	span, err := ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(span))
	}
	if fields == nil {
		// The span was the literal null, which never happens for {...}, but
		// keep the contract: a nil error means a usable map.
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

// DecodeField decodes fields[key] into T. ok is false when the key is absent,
// null, or holds a value of the wrong type.
func DecodeField[T any](fields map[string]json.RawMessage, key string) (value T, ok bool) {
	raw, present := fields[key]
	if !present || string(raw) == "null" {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		return zero, false
	}
	return value, true
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
