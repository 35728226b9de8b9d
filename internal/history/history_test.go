package history

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/tuplebridge/internal/filter"
	"github.com/dyluth/tuplebridge/pkg/space"
	"github.com/dyluth/tuplebridge/pkg/tuple"
	"github.com/dyluth/tuplebridge/pkg/value"
)

func setupSpace(t *testing.T) *space.Space {
	t.Helper()
	mr := miniredis.RunT(t)
	sp, err := space.Open(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { sp.Close() })
	return sp
}

func publish(t *testing.T, sp *space.Space, m map[string]any) space.Record {
	t.Helper()
	tp, err := tuple.FromMap(m)
	require.NoError(t, err)
	rec, err := sp.PublishRecord(context.Background(), tp)
	require.NoError(t, err)
	return rec
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty space - default format", func(t *testing.T) {
		sp := setupSpace(t)

		var buf bytes.Buffer
		require.NoError(t, List(ctx, sp, "test-instance", OutputFormatDefault, nil, &buf))
		assert.Contains(t, buf.String(), "No tuples found for instance 'test-instance'")
	})

	t.Run("empty space - JSONL format", func(t *testing.T) {
		sp := setupSpace(t)

		var buf bytes.Buffer
		require.NoError(t, List(ctx, sp, "test-instance", OutputFormatJSONL, nil, &buf))
		assert.Empty(t, buf.String())
	})

	t.Run("multiple tuples - default format", func(t *testing.T) {
		sp := setupSpace(t)
		first := publish(t, sp, map[string]any{"type": "chat", "payload": "hello"})
		second := publish(t, sp, map[string]any{"type": "presence", "online": 1})

		var buf bytes.Buffer
		require.NoError(t, List(ctx, sp, "test-instance", OutputFormatDefault, nil, &buf))

		output := buf.String()
		assert.Contains(t, output, "Tuples for instance 'test-instance'")
		assert.Contains(t, output, first.ID[:8])
		assert.Contains(t, output, second.ID[:8])
		assert.Contains(t, output, `payload:"hello"`)
		assert.Contains(t, output, "2 tuples found")
		assert.Less(t, strings.Index(output, first.ID[:8]), strings.Index(output, second.ID[:8]))
	})

	t.Run("JSONL format carries native fields", func(t *testing.T) {
		sp := setupSpace(t)
		rec := publish(t, sp, map[string]any{"type": "chat", "seq": 7})

		var buf bytes.Buffer
		require.NoError(t, List(ctx, sp, "test-instance", OutputFormatJSONL, nil, &buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)

		var entry struct {
			ID     string         `json:"id"`
			Origin string         `json:"origin"`
			Tuple  map[string]any `json:"tuple"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, rec.ID, entry.ID)
		assert.Equal(t, sp.Origin(), entry.Origin)
		assert.Equal(t, "chat", entry.Tuple["type"])
		assert.Equal(t, float64(7), entry.Tuple["seq"])
	})

	t.Run("filters", func(t *testing.T) {
		sp := setupSpace(t)
		publish(t, sp, map[string]any{"type": "chat.message", "author": "bob"})
		publish(t, sp, map[string]any{"type": "chat.message", "author": "alice"})
		publish(t, sp, map[string]any{"type": "presence", "author": "bob"})

		bob, err := filter.ParseFields([]string{"author=bob"})
		require.NoError(t, err)

		var buf bytes.Buffer
		criteria := &filter.Criteria{Fields: bob, TypeGlob: "chat.*"}
		require.NoError(t, List(ctx, sp, "test-instance", OutputFormatJSONL, criteria, &buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"author":"bob"`)
		assert.Contains(t, lines[0], `"type":"chat.message"`)
	})

	t.Run("unknown format", func(t *testing.T) {
		sp := setupSpace(t)
		err := List(ctx, sp, "test-instance", OutputFormat("xml"), nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("existing tuple", func(t *testing.T) {
		sp := setupSpace(t)
		rec := publish(t, sp, map[string]any{"type": "chat", "payload": "hi"})

		var buf bytes.Buffer
		require.NoError(t, Get(ctx, sp, rec.ID, &buf))

		var entry Entry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, rec.ID, entry.ID)
		assert.Equal(t, rec.PublishedAtMs, entry.PublishedAtMs)
	})

	t.Run("not found", func(t *testing.T) {
		sp := setupSpace(t)
		err := Get(ctx, sp, "550e8400-e29b-41d4-a716-446655440000", &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "550e8400-e29b-41d4-a716-446655440000")
	})

	t.Run("invalid id", func(t *testing.T) {
		sp := setupSpace(t)
		err := Get(ctx, sp, "not-a-uuid", &bytes.Buffer{})
		assert.ErrorContains(t, err, "must be a valid UUID")
		assert.False(t, IsNotFound(err))
	})
}

func TestNewEntry_FallsBackToDisplayForm(t *testing.T) {
	tp, err := tuple.New(tuple.Field{Name: "k", Value: value.NewMap(
		value.Entry{Key: value.Int64(1), Value: value.Str("one")},
	)})
	require.NoError(t, err)

	entry := NewEntry(space.Record{ID: "x", Tuple: tp})
	assert.Equal(t, tp.String(), entry.Tuple)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", shortID(""))
	assert.Equal(t, "12345678", shortID("123456789abc"))
	assert.Equal(t, "-", formatType(""))
	assert.Equal(t, "abcdefghijklm...", formatType("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "-", formatAge(0))
}
