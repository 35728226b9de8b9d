package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/tuplebridge/pkg/value"
)

func mustTuple(t *testing.T, m map[string]any) Tuple {
	t.Helper()
	tup, err := FromMap(m)
	require.NoError(t, err)
	return tup
}

func TestSerialize_RoundTrip(t *testing.T) {
	original := mustTuple(t, map[string]any{
		"type":  "chat",
		"body":  "hi",
		"seq":   3,
		"reply": nil,
		"meta":  map[string]any{"lang": "pt", "len": 2},
	})

	b, err := Serialize(original)
	require.NoError(t, err)

	got, err := Deserialize(b)
	require.NoError(t, err)
	assert.True(t, original.Equal(got), "want %s, got %s", original, got)
	assert.Equal(t, original.Names(), got.Names())
}

func TestSerialize_IgnoresInsertionOrder(t *testing.T) {
	a, err := New(
		Field{Name: "type", Value: value.Str("chat")},
		Field{Name: "body", Value: value.Str("hi")},
	)
	require.NoError(t, err)

	b, err := New(
		Field{Name: "body", Value: value.Str("hi")},
		Field{Name: "type", Value: value.Str("chat")},
	)
	require.NoError(t, err)

	ab, err := Serialize(a)
	require.NoError(t, err)
	bb, err := Serialize(b)
	require.NoError(t, err)

	assert.Equal(t, ab, bb)
	assert.True(t, a.Equal(b))
}

func TestSerialize_Keyword(t *testing.T) {
	tup, err := New(Field{Name: "status", Value: value.Keyword("online")})
	require.NoError(t, err)

	_, err = Serialize(tup)
	assert.ErrorIs(t, err, value.ErrNotImplemented)
}

func TestDeserialize_Errors(t *testing.T) {
	t.Run("not a map", func(t *testing.T) {
		b, err := value.Encode(value.Str("chat"))
		require.NoError(t, err)

		_, err = Deserialize(b)
		assert.ErrorIs(t, err, value.ErrMalformedData)
	})

	t.Run("non string field name", func(t *testing.T) {
		b, err := value.Encode(value.NewMap(value.Entry{Key: value.Int64(1), Value: value.Null{}}))
		require.NoError(t, err)

		_, err = Deserialize(b)
		assert.ErrorIs(t, err, value.ErrMalformedData)
	})

	t.Run("empty field name", func(t *testing.T) {
		b, err := value.Encode(value.NewMap(value.Entry{Key: value.Str(""), Value: value.Null{}}))
		require.NoError(t, err)

		_, err = Deserialize(b)
		assert.ErrorIs(t, err, value.ErrMalformedData)
	})

	t.Run("truncated", func(t *testing.T) {
		b, err := Serialize(mustTuple(t, map[string]any{"type": "chat"}))
		require.NoError(t, err)

		_, err = Deserialize(b[:len(b)-1])
		assert.ErrorIs(t, err, value.ErrMalformedData)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := Deserialize([]byte{0, 0, 0, 42})
		assert.ErrorIs(t, err, value.ErrUnsupportedType)
	})
}

func TestTuple_Set(t *testing.T) {
	var tup Tuple
	require.NoError(t, tup.Set("type", value.Str("chat")))
	require.NoError(t, tup.Set("type", value.Str("note")))
	require.NoError(t, tup.Set("body", nil))

	assert.Equal(t, 2, tup.Len())
	assert.Equal(t, "note", tup.Type())

	body, ok := tup.Get("body")
	require.True(t, ok)
	assert.Equal(t, value.Null{}, body)

	assert.ErrorIs(t, tup.Set("", value.Null{}), ErrEmptyFieldName)
}

func TestMatches(t *testing.T) {
	msg := mustTuple(t, map[string]any{"type": "chat", "body": "hi", "seq": 1})

	tests := []struct {
		name     string
		criteria map[string]any
		want     bool
	}{
		{"empty criteria matches everything", map[string]any{}, true},
		{"subset matches", map[string]any{"type": "chat"}, true},
		{"all fields match", map[string]any{"type": "chat", "body": "hi", "seq": 1}, true},
		{"different value", map[string]any{"type": "note"}, false},
		{"different kind", map[string]any{"seq": "1"}, false},
		{"missing field", map[string]any{"author": "ana"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(mustTuple(t, tt.criteria), msg))
		})
	}
}

func TestToMap(t *testing.T) {
	tup := mustTuple(t, map[string]any{"type": "chat", "seq": 1})

	m, err := tup.ToMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "chat", "seq": int64(1)}, m)
}

func TestString(t *testing.T) {
	tup := mustTuple(t, map[string]any{"type": "chat", "seq": 1})
	assert.Equal(t, `{seq:1, type:"chat"}`, tup.String())
}
