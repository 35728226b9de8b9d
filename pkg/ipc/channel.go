package ipc

import (
	"context"
	"errors"
)

// RequestTarget is the well-known target the bridge listens on for requests.
const RequestTarget = "requests"

var (
	// ErrNoReceiver is returned by Send when nothing is listening on the target.
	ErrNoReceiver = errors.New("ipc: no receiver for target")

	// ErrTargetInUse is returned by Listen when the target already has a listener.
	ErrTargetInUse = errors.New("ipc: target already has a listener")

	// ErrEmptyTarget is returned when a target name is empty.
	ErrEmptyTarget = errors.New("ipc: target cannot be empty")

	// ErrClosed is returned after the transport has been closed.
	ErrClosed = errors.New("ipc: transport closed")
)

// Channel sends messages to addressable targets. Messages sent by one
// goroutine to one target arrive in the order they were sent.
type Channel interface {
	Send(ctx context.Context, target string, msg Message) error
}

// Inbox delivers the messages addressed to one target.
// Caller must call Close() when done.
type Inbox interface {
	// Messages is closed when the inbox is closed or its context ends.
	Messages() <-chan Message

	// Errors reports frames that could not be decoded. They are skipped.
	Errors() <-chan error

	// Close stops delivery. Safe to call multiple times.
	Close() error
}

// Transport is a Channel that can also receive.
type Transport interface {
	Channel

	// Listen starts receiving messages addressed to target. The inbox is
	// ready when Listen returns: anything sent afterwards is delivered.
	Listen(ctx context.Context, target string) (Inbox, error)

	Close() error
}
