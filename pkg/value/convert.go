package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FromGo converts a native Go value to a Value.
//
// nil becomes Null, strings become Str, integers that fit in int64 become
// Int64, and map[string]any / map[any]any become Map (keys sorted so the
// result is deterministic). json.RawMessage is carried as Opaque as-is.
// Anything else is marshalled to JSON and carried as Opaque.
func FromGo(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return orNull(v), nil
	case string:
		return Str(v), nil
	case int:
		return Int64(v), nil
	case int8:
		return Int64(v), nil
	case int16:
		return Int64(v), nil
	case int32:
		return Int64(v), nil
	case int64:
		return Int64(v), nil
	case uint8:
		return Int64(v), nil
	case uint16:
		return Int64(v), nil
	case uint32:
		return Int64(v), nil
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return Int64(v), nil
		}
	case uint64:
		if v <= math.MaxInt64 {
			return Int64(v), nil
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &Map{entries: make([]Entry, 0, len(v))}
		for _, k := range keys {
			val, err := FromGo(v[k])
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", k, err)
			}
			m.Set(Str(k), val)
		}
		return m, nil
	case map[any]any:
		return fromAnyMap(v)
	case json.RawMessage:
		return Opaque{Data: append([]byte(nil), v...)}, nil
	}

	blob, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %v", ErrUnsupportedType, x, err)
	}
	return Opaque{Data: blob}, nil
}

func fromAnyMap(src map[any]any) (Value, error) {
	type pair struct {
		key, val Value
		sortKey  []byte
	}
	pairs := make([]pair, 0, len(src))
	for k, v := range src {
		kv, err := FromGo(k)
		if err != nil {
			return nil, fmt.Errorf("map key %v: %w", k, err)
		}
		vv, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("map value for key %v: %w", k, err)
		}
		enc, err := Encode(kv)
		if err != nil {
			return nil, fmt.Errorf("map key %v: %w", k, err)
		}
		pairs = append(pairs, pair{key: kv, val: vv, sortKey: enc})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].sortKey, pairs[j].sortKey) < 0
	})
	m := &Map{entries: make([]Entry, 0, len(pairs))}
	for _, p := range pairs {
		m.Set(p.key, p.val)
	}
	return m, nil
}

// ToGo converts v to a native Go value: nil, string, int64,
// map[string]any (when every key is a Str), map[any]any, or json.RawMessage
// for Opaque. Keyword values fail with ErrNotImplemented. Map keys that are
// themselves maps or opaque blobs cannot be Go map keys and fail with
// ErrUnsupportedType.
func ToGo(v Value) (any, error) {
	g := &goConverter{}
	if err := Walk(v, g); err != nil {
		return nil, err
	}
	return g.out, nil
}

type goConverter struct {
	out any
}

func (g *goConverter) VisitNull(Null) error {
	g.out = nil
	return nil
}

func (g *goConverter) VisitStr(s Str) error {
	g.out = string(s)
	return nil
}

func (g *goConverter) VisitKeyword(k Keyword) error {
	return fmt.Errorf("%w: keyword %s has no Go representation", ErrNotImplemented, k)
}

func (g *goConverter) VisitInt64(i Int64) error {
	g.out = int64(i)
	return nil
}

func (g *goConverter) VisitMap(m *Map) error {
	allStr := true
	for _, e := range m.entries {
		if e.Key.Kind() != KindStr {
			allStr = false
			break
		}
	}

	if allStr {
		out := make(map[string]any, m.Len())
		for _, e := range m.entries {
			val, err := ToGo(e.Value)
			if err != nil {
				return err
			}
			out[string(e.Key.(Str))] = val
		}
		g.out = out
		return nil
	}

	out := make(map[any]any, m.Len())
	for _, e := range m.entries {
		switch e.Key.Kind() {
		case KindMap, KindOpaque:
			return fmt.Errorf("%w: %s map key has no Go representation", ErrUnsupportedType, e.Key.Kind())
		}
		key, err := ToGo(e.Key)
		if err != nil {
			return err
		}
		val, err := ToGo(e.Value)
		if err != nil {
			return err
		}
		out[key] = val
	}
	g.out = out
	return nil
}

func (g *goConverter) VisitOpaque(o Opaque) error {
	g.out = json.RawMessage(append([]byte(nil), o.Data...))
	return nil
}
