package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONDoc stores any typed document in a jsonb column. It is the generic
// counterpart of JSONB for columns with a known Go shape (pattern lists,
// workflow state, attendee lists).
type JSONDoc[T any] struct {
	V T
}

func NewJSONDoc[T any](v T) JSONDoc[T] {
	return JSONDoc[T]{V: v}
}

func (d JSONDoc[T]) Value() (driver.Value, error) {
	return json.Marshal(d.V)
}

func (d *JSONDoc[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &d.V)
}

func (d JSONDoc[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.V)
}

func (d *JSONDoc[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &d.V)
}
