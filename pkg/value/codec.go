package value

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Wire format
//
// Every value starts with its Kind as a big-endian uint32, followed by a
// kind-specific payload:
//
//	Null     (nothing)
//	Str      uint32 byte length, UTF-8 bytes
//	Keyword  not supported
//	Int64    8 bytes, big-endian two's complement
//	Map      uint32 pair count, then key and value of each pair, each a full value
//	Opaque   uint32 byte length, blob bytes

var (
	// ErrMalformedData reports truncated or otherwise invalid wire bytes.
	ErrMalformedData = errors.New("value: malformed data")

	// ErrUnsupportedType reports a tag outside the known set, or a Go value
	// that cannot be represented.
	ErrUnsupportedType = errors.New("value: unsupported type")

	// ErrNotImplemented reports a kind the wire format does not carry yet.
	ErrNotImplemented = errors.New("value: not implemented")
)

const (
	// MaxDepth bounds map nesting on both encode and decode.
	MaxDepth = 64

	tagLen   = 4
	int64Len = 8
)

// Host materializes Opaque blobs on behalf of the decoder. Decoding an Opaque
// value fails when the host cannot materialize its blob.
type Host interface {
	Materialize(blob []byte) error
}

// HostFunc adapts a function to Host.
type HostFunc func(blob []byte) error

func (f HostFunc) Materialize(blob []byte) error { return f(blob) }

// JSONHost accepts blobs that are valid JSON documents. It is the default
// host: FromGo serializes values outside the closed set as JSON.
var JSONHost Host = HostFunc(func(blob []byte) error {
	if !json.Valid(blob) {
		return errors.New("blob is not valid JSON")
	}
	return nil
})

// Codec encodes and decodes values. The zero Codec uses JSONHost.
type Codec struct {
	Host Host
}

var defaultCodec Codec

// Encode serializes v with the default codec.
func Encode(v Value) ([]byte, error) { return defaultCodec.Encode(v) }

// Decode parses b with the default codec.
func Decode(b []byte) (Value, error) { return defaultCodec.Decode(b) }

// Encode serializes v. A nil v encodes as Null.
func (c Codec) Encode(v Value) ([]byte, error) {
	return c.Append(nil, v)
}

// Append appends the encoding of v to dst.
func (c Codec) Append(dst []byte, v Value) ([]byte, error) {
	e := &encoder{buf: dst}
	if err := Walk(v, e); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Decode parses exactly one value from b. Trailing bytes are malformed data.
func (c Codec) Decode(b []byte) (Value, error) {
	host := c.Host
	if host == nil {
		host = JSONHost
	}
	d := &decoder{buf: b, host: host}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrMalformedData, len(d.buf)-d.off, d.off)
	}
	return v, nil
}

type encoder struct {
	buf   []byte
	depth int
}

func (e *encoder) tag(k Kind) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(k))
}

func (e *encoder) bytes(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes exceed the length prefix", ErrMalformedData, len(b))
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
	return nil
}

func (e *encoder) VisitNull(Null) error {
	e.tag(KindNull)
	return nil
}

func (e *encoder) VisitStr(s Str) error {
	if !utf8.ValidString(string(s)) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrMalformedData)
	}
	e.tag(KindStr)
	return e.bytes([]byte(s))
}

func (e *encoder) VisitKeyword(k Keyword) error {
	return fmt.Errorf("%w: encoding keyword %s", ErrNotImplemented, k)
}

func (e *encoder) VisitInt64(i Int64) error {
	e.tag(KindInt64)
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(i))
	return nil
}

func (e *encoder) VisitMap(m *Map) error {
	if e.depth >= MaxDepth {
		return fmt.Errorf("%w: maps nested deeper than %d", ErrMalformedData, MaxDepth)
	}
	if uint64(m.Len()) > math.MaxUint32 {
		return fmt.Errorf("%w: %d map entries exceed the count prefix", ErrMalformedData, m.Len())
	}
	e.tag(KindMap)
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(m.Len()))
	e.depth++
	defer func() { e.depth-- }()
	for _, entry := range m.entries {
		if err := Walk(entry.Key, e); err != nil {
			return err
		}
		if err := Walk(entry.Value, e); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) VisitOpaque(o Opaque) error {
	e.tag(KindOpaque)
	return e.bytes(o.Data)
}

type decoder struct {
	buf  []byte
	off  int
	host Host
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) u32(what string) (uint32, error) {
	if d.remaining() < tagLen {
		return 0, fmt.Errorf("%w: truncated %s at offset %d", ErrMalformedData, what, d.off)
	}
	n := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += tagLen
	return n, nil
}

func (d *decoder) lengthPrefixed(what string) ([]byte, error) {
	n, err := d.u32(what + " length")
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: %s of %d bytes truncated at offset %d", ErrMalformedData, what, n, d.off)
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:])
	d.off += int(n)
	return out, nil
}

func (d *decoder) value(depth int) (Value, error) {
	start := d.off
	tag, err := d.u32("tag")
	if err != nil {
		return nil, err
	}

	switch Kind(tag) {
	case KindNull:
		return Null{}, nil

	case KindStr:
		b, err := d.lengthPrefixed("string")
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("%w: string at offset %d is not valid UTF-8", ErrMalformedData, start)
		}
		return Str(b), nil

	case KindKeyword:
		return nil, fmt.Errorf("%w: decoding keyword at offset %d", ErrNotImplemented, start)

	case KindInt64:
		if d.remaining() < int64Len {
			return nil, fmt.Errorf("%w: truncated int64 at offset %d", ErrMalformedData, d.off)
		}
		i := int64(binary.BigEndian.Uint64(d.buf[d.off:]))
		d.off += int64Len
		return Int64(i), nil

	case KindMap:
		return d.mapValue(depth, start)

	case KindOpaque:
		b, err := d.lengthPrefixed("opaque blob")
		if err != nil {
			return nil, err
		}
		if err := d.host.Materialize(b); err != nil {
			return nil, fmt.Errorf("%w: opaque value at offset %d: %v", ErrMalformedData, start, err)
		}
		return Opaque{Data: b}, nil

	default:
		return nil, fmt.Errorf("%w: tag %d at offset %d", ErrUnsupportedType, tag, start)
	}
}

func (d *decoder) mapValue(depth, start int) (Value, error) {
	if depth >= MaxDepth {
		return nil, fmt.Errorf("%w: maps nested deeper than %d at offset %d", ErrMalformedData, MaxDepth, start)
	}
	count, err := d.u32("map count")
	if err != nil {
		return nil, err
	}
	// Each pair needs at least a key tag and a value tag.
	if uint64(count)*2*tagLen > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: map of %d pairs truncated at offset %d", ErrMalformedData, count, d.off)
	}
	m := &Map{entries: make([]Entry, 0, count)}
	for i := uint32(0); i < count; i++ {
		keyAt := d.off
		k, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, dup := m.Get(k); dup {
			return nil, fmt.Errorf("%w: duplicate map key %s at offset %d", ErrMalformedData, k, keyAt)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		m.entries = append(m.entries, Entry{Key: k, Value: v})
	}
	return m, nil
}
