package store

import (
	"encoding/json"
	"fmt"
)

// Item is one cached record. Fields holds the decoded record for display and
// patching; Source keeps the serialized snapshot exactly as received, for
// diffing and revert. Source is never mutated after construction.
type Item struct {
	ID     int64
	Fields map[string]any
	Source json.RawMessage
}

// newItem wraps one raw record. The record must carry an integer "id" field.
func newItem(raw json.RawMessage) (*Item, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	id, ok := numericID(fields["id"])
	if !ok {
		return nil, fmt.Errorf("record has no integer id")
	}
	src := make(json.RawMessage, len(raw))
	copy(src, raw)
	return &Item{ID: id, Fields: fields, Source: src}, nil
}

// Int64Field reads an integer field from the record, reporting whether it
// was present and numeric.
func (it *Item) Int64Field(name string) (int64, bool) {
	if it == nil || it.Fields == nil {
		return 0, false
	}
	return numericID(it.Fields[name])
}

// StringField reads a string field from the record.
func (it *Item) StringField(name string) string {
	if it == nil || it.Fields == nil {
		return ""
	}
	s, _ := it.Fields[name].(string)
	return s
}

// numericID coerces the JSON number representations an id can arrive as.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}
