// Package filter builds tuples and match criteria from command-line input.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dyluth/tuplebridge/pkg/space"
	"github.com/dyluth/tuplebridge/pkg/tuple"
	"github.com/dyluth/tuplebridge/pkg/value"
)

// Criteria selects stored records. All filters are ANDed together.
type Criteria struct {
	Fields   tuple.Tuple  // Subset match on tuple fields, empty = no filter
	TypeGlob string       // Glob pattern for the "type" field, empty = no filter
	Window   space.Window // Publication time bounds, zero = no filter
}

// Matches returns true if the record matches all filter criteria.
func (c *Criteria) Matches(rec space.Record) bool {
	if !c.Window.Contains(rec.PublishedAtMs) {
		return false
	}
	if !tuple.Matches(c.Fields, rec.Tuple) {
		return false
	}
	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, rec.Tuple.Type())
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.Fields.Len() > 0 ||
		c.TypeGlob != "" ||
		!c.Window.Since.IsZero() ||
		!c.Window.Until.IsZero()
}

// ParseFields builds a tuple from "name=value" and "name:=json" arguments.
//
// With "=", a value that parses as a base-10 integer becomes Int64, the
// literal null becomes Null and anything else is a string. With ":=", the
// value is decoded as JSON; objects become maps and integers Int64.
func ParseFields(args []string) (tuple.Tuple, error) {
	var t tuple.Tuple
	for _, arg := range args {
		name, v, err := parseField(arg)
		if err != nil {
			return tuple.Tuple{}, err
		}
		if err := t.Set(name, v); err != nil {
			return tuple.Tuple{}, fmt.Errorf("field %q: %w", name, err)
		}
	}
	return t, nil
}

func parseField(arg string) (string, value.Value, error) {
	if name, raw, ok := strings.Cut(arg, ":="); ok && !strings.Contains(name, "=") {
		native, err := decodeJSON(raw)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", name, err)
		}
		v, err := value.FromGo(native)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", name, err)
		}
		return name, v, nil
	}

	name, raw, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid field %q: expected name=value or name:=json", arg)
	}
	if raw == "null" {
		return name, value.Null{}, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return name, value.Int64(n), nil
	}
	return name, value.Str(raw), nil
}

// ParseJSON builds a tuple from a JSON object.
func ParseJSON(s string) (tuple.Tuple, error) {
	native, err := decodeJSON(s)
	if err != nil {
		return tuple.Tuple{}, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return tuple.Tuple{}, errors.New("tuple JSON must be an object")
	}
	return tuple.FromMap(m)
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON: trailing data")
	}
	return normalize(x)
}

// normalize turns json.Number into int64, recursing into objects. Arrays are
// left for value.FromGo to carry as opaque JSON.
func normalize(x any) (any, error) {
	switch v := x.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s is not a 64-bit integer", v)
		}
		return n, nil
	case map[string]any:
		for k, e := range v {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			v[k] = ne
		}
		return v, nil
	}
	return x, nil
}
