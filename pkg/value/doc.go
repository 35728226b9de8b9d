// Package value defines the self-describing value codec used to carry tuple
// fields across the tuplebridge process boundary.
//
// # Overview
//
// A Value is one of a closed set of kinds: Null, Str, Keyword, Int64, Map and
// Opaque. Maps are recursive, so keys and values may themselves be maps.
// Opaque is the escape hatch for anything outside the closed set: it carries
// an already serialized blob that the codec passes through uninterpreted.
//
// # Wire format
//
// Each value is a big-endian uint32 tag (the Kind ordinal) followed by a
// kind-specific payload. The ordinals are stable; changing them is a breaking
// change for every peer on the other side of the boundary.
//
//	b, err := value.Encode(value.NewMap(
//		value.Entry{Key: value.Str("type"), Value: value.Str("chat")},
//		value.Entry{Key: value.Str("seq"), Value: value.Int64(7)},
//	))
//
//	v, err := value.Decode(b)
//	value.Equal(v, original) // true
//
// # Errors
//
// Decoding reports ErrUnsupportedType for unknown tags and ErrMalformedData
// for truncated or invalid payloads. Keyword is part of the model but not of
// the wire format yet; both directions fail with ErrNotImplemented. A failed
// decode never affects later calls.
package value
