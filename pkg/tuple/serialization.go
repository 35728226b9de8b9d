package tuple

import (
	"fmt"

	"github.com/dyluth/tuplebridge/pkg/value"
)

// Serialize encodes t as a value Map keyed by Str field names. Fields are
// written in name order, so tuples with identical content always produce
// identical bytes.
func Serialize(t Tuple) ([]byte, error) {
	b, err := value.Encode(ToValue(t))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tuple: %w", err)
	}
	return b, nil
}

// ToValue returns t as a Map keyed by Str field names in name order.
func ToValue(t Tuple) *value.Map {
	m := &value.Map{}
	for _, name := range t.Names() {
		v, _ := t.Get(name)
		m.Set(value.Str(name), v)
	}
	return m
}

// Deserialize decodes bytes produced by Serialize. The top-level value must be
// a Map whose keys are non-empty Str values; anything else is reported as
// value.ErrMalformedData.
func Deserialize(b []byte) (Tuple, error) {
	v, err := value.Decode(b)
	if err != nil {
		return Tuple{}, fmt.Errorf("failed to deserialize tuple: %w", err)
	}
	return FromValue(v)
}

// FromValue converts a decoded Map into a tuple.
func FromValue(v value.Value) (Tuple, error) {
	m, ok := v.(*value.Map)
	if !ok || m == nil {
		return Tuple{}, fmt.Errorf("%w: tuple must be a map, got %s", value.ErrMalformedData, kindOf(v))
	}

	t := Tuple{fields: make([]Field, 0, m.Len())}
	for _, e := range m.Entries() {
		name, ok := e.Key.(value.Str)
		if !ok {
			return Tuple{}, fmt.Errorf("%w: tuple field name must be a string, got %s", value.ErrMalformedData, e.Key.Kind())
		}
		if err := t.Set(string(name), e.Value); err != nil {
			return Tuple{}, fmt.Errorf("%w: %v", value.ErrMalformedData, err)
		}
	}
	return t, nil
}

func kindOf(v value.Value) string {
	if v == nil {
		return "nothing"
	}
	return v.Kind().String()
}
