package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the wire tag of a Value.
//
// The ordinals are part of the wire format. Reordering them, or inserting a
// new kind anywhere but the end, breaks every peer built against an older
// version.
type Kind uint32

const (
	KindNull    Kind = 0
	KindStr     Kind = 1
	KindKeyword Kind = 2
	KindInt64   Kind = 3
	KindMap     Kind = 4
	KindOpaque  Kind = 5
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindStr:
		return "str"
	case KindKeyword:
		return "keyword"
	case KindInt64:
		return "int64"
	case KindMap:
		return "map"
	case KindOpaque:
		return "opaque"
	default:
		return "kind(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
}

// Value is a tuple field value. The set of implementations is closed: only
// the types in this package satisfy it.
type Value interface {
	Kind() Kind
	String() string
	accept(v Visitor) error
}

// Visitor has one method per Value kind. Every consumer that must handle all
// kinds (the encoder, equality, Go conversion) implements it, so a new kind
// does not compile until each of them handles it.
type Visitor interface {
	VisitNull(Null) error
	VisitStr(Str) error
	VisitKeyword(Keyword) error
	VisitInt64(Int64) error
	VisitMap(*Map) error
	VisitOpaque(Opaque) error
}

// Walk dispatches v to the matching Visitor method. A nil v is visited as Null.
func Walk(v Value, vis Visitor) error {
	return orNull(v).accept(vis)
}

// Null is the absent value.
type Null struct{}

func (Null) Kind() Kind               { return KindNull }
func (Null) String() string           { return "null" }
func (n Null) accept(v Visitor) error { return v.VisitNull(n) }

// Str is a UTF-8 string.
type Str string

func (Str) Kind() Kind               { return KindStr }
func (s Str) String() string         { return strconv.Quote(string(s)) }
func (s Str) accept(v Visitor) error { return v.VisitStr(s) }

// Keyword is an interned symbolic atom, distinct from Str. The wire format
// does not support it yet: encoding or decoding one fails with
// ErrNotImplemented.
type Keyword string

func (Keyword) Kind() Kind               { return KindKeyword }
func (k Keyword) String() string         { return ":" + string(k) }
func (k Keyword) accept(v Visitor) error { return v.VisitKeyword(k) }

// Int64 is a signed 64-bit integer.
type Int64 int64

func (Int64) Kind() Kind               { return KindInt64 }
func (i Int64) String() string         { return strconv.FormatInt(int64(i), 10) }
func (i Int64) accept(v Visitor) error { return v.VisitInt64(i) }

// Opaque carries a value outside the closed set as an already serialized,
// self-describing blob. Equality is byte equality of Data.
type Opaque struct {
	Data []byte
}

func (Opaque) Kind() Kind               { return KindOpaque }
func (o Opaque) String() string         { return fmt.Sprintf("opaque(%d bytes)", len(o.Data)) }
func (o Opaque) accept(v Visitor) error { return v.VisitOpaque(o) }

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered list of key/value pairs with keys unique by
// Equal. Keys and values may be any Value, including other maps.
// The zero value is an empty map ready to use.
type Map struct {
	entries []Entry
}

// NewMap builds a map from pairs, applying Set to each in order.
func NewMap(pairs ...Entry) *Map {
	m := &Map{entries: make([]Entry, 0, len(pairs))}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

func (*Map) Kind() Kind               { return KindMap }
func (m *Map) accept(v Visitor) error { return v.VisitMap(m) }

// Set stores val under key. An existing equal key keeps its position and has
// its value replaced. Nil keys and values are stored as Null.
func (m *Map) Set(key, val Value) {
	key, val = orNull(key), orNull(val)
	for i := range m.entries {
		if Equal(m.entries[i].Key, key) {
			m.entries[i].Value = val
			return
		}
	}
	m.entries = append(m.entries, Entry{Key: key, Value: val})
}

// Get returns the value stored under a key equal to key.
func (m *Map) Get(key Value) (Value, bool) {
	if m == nil {
		return nil, false
	}
	key = orNull(key)
	for _, e := range m.entries {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key Value) bool {
	key = orNull(key)
	for i, e := range m.entries {
		if Equal(e.Key, key) {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of pairs.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the pairs in insertion order.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Key.String())
		b.WriteByte(' ')
		b.WriteString(e.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	if m, ok := v.(*Map); ok && m == nil {
		return &Map{}
	}
	return v
}
