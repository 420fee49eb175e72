package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Relation holds an optional to-one related record. Embedded relations come
// back as an object, a one-element array or null depending on how the query
// was shaped; all three decode to the same value here.
type Relation[T any] struct {
	Value *T
}

// Some wraps v.
func Some[T any](v T) Relation[T] {
	return Relation[T]{Value: &v}
}

// Get returns the related value and whether it is present.
func (r Relation[T]) Get() (T, bool) {
	if r.Value == nil {
		var zero T
		return zero, false
	}
	return *r.Value, true
}

// Present reports whether the relation resolved to a record.
func (r Relation[T]) Present() bool {
	return r.Value != nil
}

// UnmarshalJSON accepts an object, an array (first element wins) or null.
func (r *Relation[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	r.Value = nil
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		if len(items) > 0 {
			r.Value = &items[0]
		}
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	r.Value = &v
	return nil
}

// MarshalJSON always emits the normalised form: object or null.
func (r Relation[T]) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*r.Value)
}

// Scan decodes a json/jsonb column.
func (r *Relation[T]) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		r.Value = nil
		return nil
	case []byte:
		return r.UnmarshalJSON(v)
	case string:
		return r.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("relation: cannot scan %T", src)
	}
}
