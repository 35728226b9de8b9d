package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Magic opens every frame ("TPLB").
	Magic uint32 = 0x54504C42

	// Version is the frame layout version.
	Version uint16 = 1

	// MaxPayload bounds the payload of a single frame.
	MaxPayload = 8 * 1024 * 1024

	// magic(4) version(2) op(1) subscription(8) reply_len(2) ... payload_len(4) ...
	fixedLen = 4 + 2 + 1 + 8 + 2 + 4
)

var (
	ErrTruncated          = errors.New("ipc: truncated frame")
	ErrInvalidMagic       = errors.New("ipc: invalid magic")
	ErrUnsupportedVersion = errors.New("ipc: unsupported version")
	ErrPayloadTooLarge    = errors.New("ipc: payload too large")
	ErrReplyToTooLong     = errors.New("ipc: reply target too long")
	ErrTrailingBytes      = errors.New("ipc: trailing bytes after frame")
)

// Message is one request or reply crossing the boundary.
//
// SubscriptionID is set on Unsubscribe requests and on every reply that
// concerns a subscription. ReplyTo names the target replies are sent to.
type Message struct {
	Op             Opcode
	SubscriptionID uint64
	ReplyTo        string
	Payload        []byte
}

// String renders the message header for logs.
func (m Message) String() string {
	return fmt.Sprintf("%s(id=%d reply_to=%q payload=%dB)", m.Op, m.SubscriptionID, m.ReplyTo, len(m.Payload))
}

// MarshalBinary encodes m as a single frame, all integers big-endian:
//
//	magic u32 | version u16 | op u8 | subscription u64 |
//	reply_len u16 | reply bytes | payload_len u32 | payload bytes
func (m Message) MarshalBinary() ([]byte, error) {
	if len(m.ReplyTo) > math.MaxUint16 {
		return nil, ErrReplyToTooLong
	}
	if len(m.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, 0, fixedLen+len(m.ReplyTo)+len(m.Payload))
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint16(buf, Version)
	buf = append(buf, byte(m.Op))
	buf = binary.BigEndian.AppendUint64(buf, m.SubscriptionID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.ReplyTo)))
	buf = append(buf, m.ReplyTo...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Payload)))
	buf = append(buf, m.Payload...)
	return buf, nil
}

// UnmarshalBinary decodes exactly one frame from b.
func (m *Message) UnmarshalBinary(b []byte) error {
	if len(b) < fixedLen {
		return ErrTruncated
	}
	if binary.BigEndian.Uint32(b[0:4]) != Magic {
		return ErrInvalidMagic
	}
	if v := binary.BigEndian.Uint16(b[4:6]); v != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	op := Opcode(b[6])
	id := binary.BigEndian.Uint64(b[7:15])
	replyLen := int(binary.BigEndian.Uint16(b[15:17]))
	off := 17
	if len(b)-off < replyLen+4 {
		return ErrTruncated
	}
	replyTo := string(b[off : off+replyLen])
	off += replyLen

	payloadLen := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if payloadLen > MaxPayload {
		return ErrPayloadTooLarge
	}
	if uint64(len(b)-off) < uint64(payloadLen) {
		return ErrTruncated
	}
	if uint64(len(b)-off) > uint64(payloadLen) {
		return ErrTrailingBytes
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		copy(payload, b[off:])
	}

	*m = Message{Op: op, SubscriptionID: id, ReplyTo: replyTo, Payload: payload}
	return nil
}
