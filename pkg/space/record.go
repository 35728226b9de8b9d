package space

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/tuplebridge/pkg/tuple"
	"github.com/dyluth/tuplebridge/pkg/value"
)

// Record is a tuple as stored in the space.
type Record struct {
	ID            string
	Origin        string
	PublishedAtMs int64
	Tuple         tuple.Tuple
}

// PublishedAt returns the publication time.
func (r Record) PublishedAt() time.Time {
	return time.UnixMilli(r.PublishedAtMs)
}

// Hash field names.
const (
	hashOrigin      = "origin"
	hashData        = "data"
	hashPublishedAt = "published_at_ms"
)

// RecordToHash converts a record to a Redis hash. The tuple is stored in
// its wire form.
func RecordToHash(r Record) (map[string]interface{}, error) {
	data, err := tuple.Serialize(r.Tuple)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		hashOrigin:      r.Origin,
		hashData:        data,
		hashPublishedAt: r.PublishedAtMs,
	}, nil
}

// HashToRecord converts a Redis hash back to a record.
func HashToRecord(id string, hash map[string]string) (Record, error) {
	publishedAt, err := strconv.ParseInt(hash[hashPublishedAt], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid %s field: %w", hashPublishedAt, err)
	}
	t, err := tuple.Deserialize([]byte(hash[hashData]))
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            id,
		Origin:        hash[hashOrigin],
		PublishedAtMs: publishedAt,
		Tuple:         t,
	}, nil
}

// Event field names. Events travel in the value wire format.
var (
	eventID          = value.Str("id")
	eventOrigin      = value.Str("origin")
	eventPublishedAt = value.Str("published_at_ms")
	eventTuple       = value.Str("tuple")
)

// EncodeEvent encodes a record as a tuple event.
func EncodeEvent(r Record) ([]byte, error) {
	m := value.NewMap(
		value.Entry{Key: eventID, Value: value.Str(r.ID)},
		value.Entry{Key: eventOrigin, Value: value.Str(r.Origin)},
		value.Entry{Key: eventPublishedAt, Value: value.Int64(r.PublishedAtMs)},
		value.Entry{Key: eventTuple, Value: tuple.ToValue(r.Tuple)},
	)
	return value.Encode(m)
}

// DecodeEvent decodes a tuple event produced by EncodeEvent.
func DecodeEvent(b []byte) (Record, error) {
	v, err := value.Decode(b)
	if err != nil {
		return Record{}, err
	}
	m, ok := v.(*value.Map)
	if !ok {
		return Record{}, fmt.Errorf("%w: event must be a map, got %s", value.ErrMalformedData, v.Kind())
	}

	id, err := str(m, eventID)
	if err != nil {
		return Record{}, err
	}
	origin, err := str(m, eventOrigin)
	if err != nil {
		return Record{}, err
	}
	publishedAt, ok := get[value.Int64](m, eventPublishedAt)
	if !ok {
		return Record{}, fmt.Errorf("%w: event missing %s", value.ErrMalformedData, eventPublishedAt)
	}
	tv, ok := m.Get(eventTuple)
	if !ok {
		return Record{}, fmt.Errorf("%w: event missing %s", value.ErrMalformedData, eventTuple)
	}
	t, err := tuple.FromValue(tv)
	if err != nil {
		return Record{}, err
	}

	return Record{ID: id, Origin: origin, PublishedAtMs: int64(publishedAt), Tuple: t}, nil
}

func str(m *value.Map, key value.Str) (string, error) {
	s, ok := get[value.Str](m, key)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: event missing %s", value.ErrMalformedData, key)
	}
	return string(s), nil
}

func get[T value.Value](m *value.Map, key value.Str) (T, bool) {
	var zero T
	v, ok := m.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
