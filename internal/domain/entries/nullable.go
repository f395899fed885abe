package entries

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field for a nullable column. Set records that the key
// was sent at all; Null that it was sent as JSON null, which clears the
// column.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some sets the column to v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: v}
}

// Clear sets the column to NULL.
func Clear[T any]() Nullable[T] {
	return Nullable[T]{Set: true, Null: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	var zero T
	n.Set = true
	n.Value = zero
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		return nil
	}
	n.Null = false
	return json.Unmarshal(b, &n.Value)
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr is the new value, or nil when the field is absent or cleared.
func (n Nullable[T]) Ptr() *T {
	if !n.Set || n.Null {
		return nil
	}
	v := n.Value
	return &v
}

// Validatable hands the value to struct validation; absent and cleared
// fields yield nil so omitempty skips them.
func (n Nullable[T]) Validatable() any {
	if !n.Set || n.Null {
		return nil
	}
	return n.Value
}

// apply writes the field onto dst, a nullable column of the entry.
func (n Nullable[T]) apply(dst **T) {
	if n.Set {
		*dst = n.Ptr()
	}
}
