package value

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireShape(t *testing.T) {
	t.Run("null is a bare tag", func(t *testing.T) {
		b, err := Encode(Null{})
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, b)
	})

	t.Run("nil encodes as null", func(t *testing.T) {
		b, err := Encode(nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, b)
	})

	t.Run("string is length prefixed", func(t *testing.T) {
		b, err := Encode(Str("hi"))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2, 'h', 'i'}, b)
	})

	t.Run("int64 is fixed width", func(t *testing.T) {
		b, err := Encode(Int64(-2))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 3, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}, b)
	})

	t.Run("map carries count then pairs", func(t *testing.T) {
		b, err := Encode(NewMap(Entry{Key: Str("a"), Value: Null{}}))
		require.NoError(t, err)
		assert.Equal(t, []byte{
			0, 0, 0, 4, 0, 0, 0, 1,
			0, 0, 0, 1, 0, 0, 0, 1, 'a',
			0, 0, 0, 0,
		}, b)
	})

	t.Run("opaque is length prefixed", func(t *testing.T) {
		b, err := Encode(Opaque{Data: []byte("[]")})
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 5, 0, 0, 0, 2, '[', ']'}, b)
	})
}

func TestRoundTrip(t *testing.T) {
	nested := NewMap(
		Entry{Key: Str("type"), Value: Str("chat")},
		Entry{Key: Str("body"), Value: Str("olá 👋")},
		Entry{Key: Int64(42), Value: NewMap(
			Entry{Key: Null{}, Value: Int64(math.MinInt64)},
			Entry{Key: NewMap(Entry{Key: Str("k"), Value: Str("v")}), Value: Opaque{Data: []byte(`{"x":1}`)}},
		)},
		Entry{Key: Str("empty"), Value: NewMap()},
	)

	values := map[string]Value{
		"null":       Null{},
		"empty str":  Str(""),
		"str":        Str("hello"),
		"max int":    Int64(math.MaxInt64),
		"zero":       Int64(0),
		"opaque":     Opaque{Data: []byte(`"blob"`)},
		"nested map": nested,
	}

	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			b, err := Encode(v)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			assert.True(t, Equal(v, got), "want %s, got %s", v, got)

			again, err := Encode(got)
			require.NoError(t, err)
			assert.Equal(t, b, again, "re-encoding must be byte identical")
		})
	}
}

func TestKeyword_NotImplemented(t *testing.T) {
	t.Run("encode", func(t *testing.T) {
		_, err := Encode(Keyword("status"))
		assert.ErrorIs(t, err, ErrNotImplemented)
	})

	t.Run("encode nested in map", func(t *testing.T) {
		_, err := Encode(NewMap(Entry{Key: Str("k"), Value: Keyword("v")}))
		assert.ErrorIs(t, err, ErrNotImplemented)
	})

	t.Run("decode", func(t *testing.T) {
		_, err := Decode([]byte{0, 0, 0, 2, 0, 0, 0, 1, 'x'})
		assert.ErrorIs(t, err, ErrNotImplemented)
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty input", nil, ErrMalformedData},
		{"short tag", []byte{0, 0}, ErrMalformedData},
		{"unknown tag", []byte{0, 0, 0, 9}, ErrUnsupportedType},
		{"string length beyond input", []byte{0, 0, 0, 1, 0, 0, 0, 5, 'a'}, ErrMalformedData},
		{"invalid utf8", []byte{0, 0, 0, 1, 0, 0, 0, 1, 0xff}, ErrMalformedData},
		{"short int64", []byte{0, 0, 0, 3, 1, 2, 3}, ErrMalformedData},
		{"map count beyond input", []byte{0, 0, 0, 4, 0xff, 0xff, 0xff, 0xff}, ErrMalformedData},
		{"map missing value", []byte{0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0}, ErrMalformedData},
		{"opaque not json", []byte{0, 0, 0, 5, 0, 0, 0, 1, '{'}, ErrMalformedData},
		{"trailing bytes", []byte{0, 0, 0, 0, 7}, ErrMalformedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tt.in)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unknown tag nested in map", func(t *testing.T) {
		in := []byte{0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 77}
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("failed decode does not affect the next one", func(t *testing.T) {
		_, err := Decode([]byte{0, 0, 0, 9})
		require.Error(t, err)

		v, err := Decode([]byte{0, 0, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, Null{}, v)
	})
}

func TestDecode_DepthLimit(t *testing.T) {
	var b []byte
	for i := 0; i <= MaxDepth; i++ {
		b = binary.BigEndian.AppendUint32(b, uint32(KindMap))
		b = binary.BigEndian.AppendUint32(b, 1)
		b = binary.BigEndian.AppendUint32(b, uint32(KindNull))
	}
	b = binary.BigEndian.AppendUint32(b, uint32(KindNull))

	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestEncode_DepthLimit(t *testing.T) {
	v := Value(Null{})
	for i := 0; i <= MaxDepth; i++ {
		v = NewMap(Entry{Key: Null{}, Value: v})
	}

	_, err := Encode(v)
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestEncode_InvalidUTF8(t *testing.T) {
	_, err := Encode(Str([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, ErrMalformedData)
}

func TestCodec_CustomHost(t *testing.T) {
	refuse := errors.New("cannot materialize")
	c := Codec{Host: HostFunc(func([]byte) error { return refuse })}

	b, err := c.Encode(Opaque{Data: []byte("anything")})
	require.NoError(t, err)

	_, err = c.Decode(b)
	assert.ErrorIs(t, err, ErrMalformedData)
	assert.Contains(t, err.Error(), "cannot materialize")

	lenient := Codec{Host: HostFunc(func([]byte) error { return nil })}
	v, err := lenient.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, Opaque{Data: []byte("anything")}, v)
}

func TestDecode_DuplicateMapKeysRejected(t *testing.T) {
	pairs := func(keys ...Value) []byte {
		var b []byte
		b = binary.BigEndian.AppendUint32(b, uint32(KindMap))
		b = binary.BigEndian.AppendUint32(b, uint32(len(keys)))
		for i, k := range keys {
			enc, err := Encode(k)
			require.NoError(t, err)
			b = append(b, enc...)
			b = binary.BigEndian.AppendUint32(b, uint32(KindInt64))
			b = binary.BigEndian.AppendUint64(b, uint64(i))
		}
		return b
	}

	t.Run("null keys", func(t *testing.T) {
		_, err := Decode(pairs(Null{}, Null{}))
		assert.ErrorIs(t, err, ErrMalformedData)
	})

	t.Run("string keys", func(t *testing.T) {
		_, err := Decode(pairs(Str("a"), Str("b"), Str("a")))
		assert.ErrorIs(t, err, ErrMalformedData)
		assert.Contains(t, err.Error(), "duplicate map key")
	})

	t.Run("distinct keys decode", func(t *testing.T) {
		b := pairs(Str("a"), Str("b"))
		v, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, 2, v.(*Map).Len())

		again, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, b, again, "re-encoding is byte-identical")
	})
}

func TestFromGo_ToGo(t *testing.T) {
	in := map[string]any{
		"type":  "chat",
		"seq":   7,
		"empty": nil,
		"meta":  map[string]any{"tags": []string{"a", "b"}},
	}

	v, err := FromGo(in)
	require.NoError(t, err)

	m := v.(*Map)
	assert.Equal(t, 4, m.Len())

	tags, ok := m.Get(Str("meta"))
	require.True(t, ok)
	inner, ok := tags.(*Map).Get(Str("tags"))
	require.True(t, ok)
	assert.Equal(t, Opaque{Data: []byte(`["a","b"]`)}, inner)

	b, err := Encode(v)
	require.NoError(t, err)
	decoded, err := Decode(b)
	require.NoError(t, err)

	out, err := ToGo(decoded)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":  "chat",
		"seq":   int64(7),
		"empty": nil,
		"meta":  map[string]any{"tags": json.RawMessage(`["a","b"]`)},
	}, out)
}

func TestFromGo_Deterministic(t *testing.T) {
	in := map[any]any{"b": 1, int64(3): "x", "a": nil}

	first, err := FromGo(in)
	require.NoError(t, err)
	want, err := Encode(first)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		v, err := FromGo(in)
		require.NoError(t, err)
		got, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestToGo_Errors(t *testing.T) {
	_, err := ToGo(Keyword("k"))
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = ToGo(NewMap(Entry{Key: NewMap(), Value: Null{}}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
