package value

import "bytes"

// Equal reports whether a and b are structurally equal. Maps compare as sets
// of pairs, so insertion order does not matter. Opaque values compare by
// their serialized bytes; two blobs that decode to the same host value but
// differ byte-wise are not equal. A nil Value equals Null.
func Equal(a, b Value) bool {
	a, b = orNull(a), orNull(b)
	if a.Kind() != b.Kind() {
		return false
	}
	eq := &equality{other: b}
	_ = a.accept(eq)
	return eq.equal
}

type equality struct {
	other Value
	equal bool
}

func (e *equality) VisitNull(Null) error {
	e.equal = true
	return nil
}

func (e *equality) VisitStr(s Str) error {
	e.equal = e.other.(Str) == s
	return nil
}

func (e *equality) VisitKeyword(k Keyword) error {
	e.equal = e.other.(Keyword) == k
	return nil
}

func (e *equality) VisitInt64(i Int64) error {
	e.equal = e.other.(Int64) == i
	return nil
}

func (e *equality) VisitMap(m *Map) error {
	o := e.other.(*Map)
	if m.Len() != o.Len() {
		return nil
	}
	for _, entry := range m.entries {
		v, ok := o.Get(entry.Key)
		if !ok || !Equal(entry.Value, v) {
			return nil
		}
	}
	e.equal = true
	return nil
}

func (e *equality) VisitOpaque(op Opaque) error {
	e.equal = bytes.Equal(op.Data, e.other.(Opaque).Data)
	return nil
}
