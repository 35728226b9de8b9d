// Package tuple defines the Tuple record published into and matched against
// the tuple space, and converts tuples to and from the value wire format.
package tuple

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/tuplebridge/pkg/value"
)

// Conventional field names used by publishers. They carry no special meaning
// for the codec.
const (
	FieldType     = "type"
	FieldAuthor   = "author"
	FieldAudience = "audience"
	FieldPayload  = "payload"
)

// ErrEmptyFieldName is returned when setting a field with an empty name.
var ErrEmptyFieldName = errors.New("tuple: field name cannot be empty")

// Field is one named value of a tuple.
type Field struct {
	Name  string
	Value value.Value
}

// Tuple is an ordered mapping from field name to Value. Insertion order is
// kept for display but carries no meaning: two tuples with the same fields
// are equal and serialize to the same bytes.
type Tuple struct {
	fields []Field
}

// New builds a tuple from fields, applying Set to each in order.
func New(fields ...Field) (Tuple, error) {
	var t Tuple
	for _, f := range fields {
		if err := t.Set(f.Name, f.Value); err != nil {
			return Tuple{}, err
		}
	}
	return t, nil
}

// FromMap builds a tuple from native Go values via value.FromGo.
func FromMap(m map[string]any) (Tuple, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var t Tuple
	for _, name := range names {
		v, err := value.FromGo(m[name])
		if err != nil {
			return Tuple{}, fmt.Errorf("field %q: %w", name, err)
		}
		if err := t.Set(name, v); err != nil {
			return Tuple{}, err
		}
	}
	return t, nil
}

// Set stores v under name, replacing any existing value in place.
// A nil v is stored as Null.
func (t *Tuple) Set(name string, v value.Value) error {
	if name == "" {
		return ErrEmptyFieldName
	}
	if v == nil {
		v = value.Null{}
	}
	for i := range t.fields {
		if t.fields[i].Name == name {
			t.fields[i].Value = v
			return nil
		}
	}
	t.fields = append(t.fields, Field{Name: name, Value: v})
	return nil
}

// Get returns the value of the named field.
func (t Tuple) Get(name string) (value.Value, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Type returns the "type" field when it is a string.
func (t Tuple) Type() string {
	v, ok := t.Get(FieldType)
	if !ok {
		return ""
	}
	s, ok := v.(value.Str)
	if !ok {
		return ""
	}
	return string(s)
}

// Fields returns a copy of the fields in insertion order.
func (t Tuple) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Names returns the field names in sorted order.
func (t Tuple) Names() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}

// Len returns the number of fields.
func (t Tuple) Len() int {
	return len(t.fields)
}

// Equal reports whether both tuples have the same field names with equal values.
func (t Tuple) Equal(o Tuple) bool {
	if t.Len() != o.Len() {
		return false
	}
	for _, f := range t.fields {
		v, ok := o.Get(f.Name)
		if !ok || !value.Equal(f.Value, v) {
			return false
		}
	}
	return true
}

// ToMap converts the tuple to native Go values via value.ToGo.
func (t Tuple) ToMap() (map[string]any, error) {
	out := make(map[string]any, len(t.fields))
	for _, f := range t.fields {
		v, err := value.ToGo(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range t.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := t.Get(name)
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Matches reports whether t carries every field of criteria with an equal
// value. An empty criteria matches every tuple.
func Matches(criteria, t Tuple) bool {
	for _, f := range criteria.fields {
		v, ok := t.Get(f.Name)
		if !ok || !value.Equal(f.Value, v) {
			return false
		}
	}
	return true
}
