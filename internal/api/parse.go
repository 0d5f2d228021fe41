package api

import (
	"net/url"
	"strconv"
	"strings"
)

// defaultWait is the wait window in milliseconds when the wait parameter
// appears without a value.
const defaultWait = 2000

// Value is one unrecognized query entry, preserved in request order.
// Entries without an "=" carry no value (HasValue false), which is
// distinct from an empty value.
type Value struct {
	Key      string
	Val      string
	HasValue bool
}

// ParsedQuery holds the recognized control parameters of one request plus
// the remaining free-form entries.
type ParsedQuery struct {
	User string
	Pass string

	PrettyPrint bool
	JSON        bool
	NoStringify bool

	// Wait is the acknowledgement wait window in milliseconds.
	Wait int

	// Ack marks the write as already device-confirmed.
	Ack bool

	// Type is an explicit coercion hint.
	Type string

	// Callback is the JSONP wrapper function name.
	Callback string

	// Values carries every unrecognized key in request order: datapoint
	// ids with values, or command-specific parameters.
	Values []Value
}

// Get returns the first value for key among the free-form entries.
func (q *ParsedQuery) Get(key string) (string, bool) {
	for _, v := range q.Values {
		if v.Key == key {
			return v.Val, true
		}
	}
	return "", false
}

// ParseQuery parses a raw query string or URL-encoded POST body.
//
// Pairs split on "&" and then on the first "=" (values may contain "=").
// "+" decodes to a space only in value positions; keys keep it literal.
// A value that fails percent-decoding is kept raw rather than failing the
// whole parse.
func ParseQuery(raw string) *ParsedQuery {
	q := &ParsedQuery{}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		rawKey := pair
		rawVal := ""
		hasValue := false
		if idx := strings.Index(pair, "="); idx >= 0 {
			rawKey = pair[:idx]
			rawVal = pair[idx+1:]
			hasValue = true
		}

		key := decodeKey(rawKey)
		val := decodeValue(rawVal)

		switch key {
		case "user":
			q.User = strings.TrimSpace(val)
		case "pass":
			q.Pass = val
		case "prettyPrint":
			q.PrettyPrint = flagValue(val, hasValue)
		case "json":
			q.JSON = flagValue(val, hasValue)
		case "noStringify":
			q.NoStringify = flagValue(val, hasValue)
		case "wait":
			q.Wait = waitValue(val, hasValue)
		case "ack":
			q.Ack = val == "true" || val == "1"
		case "type":
			q.Type = val
		case "callback":
			q.Callback = val
		default:
			q.Values = append(q.Values, Value{Key: key, Val: val, HasValue: hasValue})
		}
	}

	return q
}

// flagValue implements boolean flag semantics: bare presence means true,
// otherwise only the literal "true" does.
func flagValue(val string, hasValue bool) bool {
	if !hasValue {
		return true
	}
	return val == "true"
}

// waitValue implements the wait parameter: bare presence means the
// default window, a non-numeric value means no wait.
func waitValue(val string, hasValue bool) int {
	if !hasValue {
		return defaultWait
	}
	ms, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return ms
}

// decodeKey percent-decodes a key, leaving "+" literal.
func decodeKey(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decodeValue percent-decodes a value with "+" as space, falling back to
// the raw text on failure.
func decodeValue(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
