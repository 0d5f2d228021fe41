// Package coerce converts raw request values into typed state values.
//
// The target type comes from an explicit type hint, falling back to the
// datapoint's declared metadata type, falling back to shape inference on
// the raw text. Coercion never produces a value outside the selected
// type's domain; anything unconvertible degrades to the raw string, except
// malformed JSON under a declared json type, which is a terminal error.
package coerce

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/oakhurst-automation/stategate/internal/store"
)

// ErrMalformedJSON indicates a value declared as json/array/object failed
// to parse. Terminal for the request.
var ErrMalformedJSON = errors.New("coerce: malformed JSON value")

// Coerce converts a raw string value to the type selected by hint (the
// request's explicit type parameter), then declaredType (the object's
// common.type), then heuristic inference.
func Coerce(raw, hint, declaredType string) (any, error) {
	typ := hint
	if typ == "" {
		typ = declaredType
	}

	switch typ {
	case store.TypeBoolean:
		return raw == "true" || raw == "1", nil
	case store.TypeNumber:
		return toNumber(raw), nil
	case store.TypeString:
		return raw, nil
	case store.TypeJSON, store.TypeArray, store.TypeObject:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, ErrMalformedJSON
		}
		return v, nil
	}

	return infer(raw), nil
}

// toNumber parses a float with decimal-comma normalization.
// Empty input and unparseable input both yield nil.
func toNumber(raw string) any {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(normalizeDecimal(raw), 64)
	if err != nil {
		return nil
	}
	return f
}

// infer guesses a type from the raw text.
//
// JSON-shaped input parses as JSON when valid. Bare true/false become
// booleans. Numeric strings convert only when the parse round-trips
// exactly, so inputs like "1.0" or "007" stay strings. Everything else
// stays a string.
func infer(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}

	switch raw {
	case "true":
		return true
	case "false":
		return false
	}

	normalized := normalizeDecimal(raw)
	if f, err := strconv.ParseFloat(normalized, 64); err == nil {
		if strconv.FormatFloat(f, 'f', -1, 64) == normalized {
			return f
		}
	}

	return raw
}

// normalizeDecimal rewrites the first decimal comma to a dot.
func normalizeDecimal(s string) string {
	return strings.Replace(s, ",", ".", 1)
}
