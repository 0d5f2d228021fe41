package store

import (
	"encoding/json"
	"fmt"
)

// State is a live, timestamped value for one datapoint.
//
// Timestamps are milliseconds since the Unix epoch. Ack marks the value as
// confirmed by the underlying device or process rather than merely requested.
type State struct {
	Val  any    `json:"val"`
	Ack  bool   `json:"ack"`
	TS   int64  `json:"ts"`
	LC   int64  `json:"lc"`
	From string `json:"from,omitempty"`
	Q    int    `json:"q"`
}

// Object is static metadata describing a datapoint or entity.
type Object struct {
	ID     string `json:"_id"`
	Type   string `json:"type"`
	Common Common `json:"common"`
}

// Common holds the shared metadata block of an object.
type Common struct {
	Name   Name              `json:"name"`
	Type   string            `json:"type,omitempty"`
	Role   string            `json:"role,omitempty"`
	Unit   string            `json:"unit,omitempty"`
	Min    *float64          `json:"min,omitempty"`
	Max    *float64          `json:"max,omitempty"`
	States map[string]string `json:"states,omitempty"`
	Read   bool              `json:"read"`
	Write  bool              `json:"write"`
}

// Value types an object's common.type may declare.
const (
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeJSON    = "json"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeMixed   = "mixed"
)

// Name is an object display name: either a plain string or a
// per-language map. Both wire forms occur in practice.
type Name struct {
	// Text is the plain display name (set when the wire form is a string).
	Text string

	// ByLanguage holds per-language names (set when the wire form is a map).
	ByLanguage map[string]string
}

// In returns the display name for the given language.
// Per-language maps fall back to English, then to the plain text form,
// then to the empty string.
func (n Name) In(lang string) string {
	if len(n.ByLanguage) > 0 {
		if s, ok := n.ByLanguage[lang]; ok && s != "" {
			return s
		}
		if s, ok := n.ByLanguage["en"]; ok && s != "" {
			return s
		}
		return ""
	}
	return n.Text
}

// MarshalJSON encodes the name in its original wire form.
func (n Name) MarshalJSON() ([]byte, error) {
	if len(n.ByLanguage) > 0 {
		return json.Marshal(n.ByLanguage)
	}
	return json.Marshal(n.Text)
}

// UnmarshalJSON accepts both the string and per-language map forms.
func (n *Name) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Text = s
		n.ByLanguage = nil
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("object name must be a string or language map: %w", err)
	}
	n.Text = ""
	n.ByLanguage = m
	return nil
}

// StateEvent is emitted when a subscribed datapoint's state changes.
type StateEvent struct {
	ID    string
	State State
}

// ObjectEvent is emitted when an object is created, updated, or deleted.
// Object is nil for deletions.
type ObjectEvent struct {
	ID     string
	Object *Object
}

// Entry pairs a datapoint id with its current state, for list operations.
type Entry struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}
