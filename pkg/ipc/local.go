package ipc

import (
	"context"
	"sync"
)

// DefaultMailboxSize is the buffer of each Local mailbox.
const DefaultMailboxSize = 64

// Local is an in-process Transport. Each listening target owns a bounded
// mailbox; Send blocks while the mailbox is full, so nothing is dropped.
type Local struct {
	size int

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
}

// NewLocal creates an in-process transport with mailboxes of the given size.
// A size below 1 uses DefaultMailboxSize.
func NewLocal(size int) *Local {
	if size < 1 {
		size = DefaultMailboxSize
	}
	return &Local{
		size:      size,
		mailboxes: make(map[string]*mailbox),
	}
}

// Send delivers msg to the mailbox of target.
func (l *Local) Send(ctx context.Context, target string, msg Message) error {
	if target == "" {
		return ErrEmptyTarget
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	mb, ok := l.mailboxes[target]
	l.mu.Unlock()
	if !ok {
		return ErrNoReceiver
	}
	return mb.send(ctx, msg)
}

// Listen registers a mailbox for target. Cancelling ctx closes it.
func (l *Local) Listen(ctx context.Context, target string) (Inbox, error) {
	if target == "" {
		return nil, ErrEmptyTarget
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if _, exists := l.mailboxes[target]; exists {
		return nil, ErrTargetInUse
	}

	mb := &mailbox{
		ch:   make(chan Message, l.size),
		errs: make(chan error),
		done: make(chan struct{}),
	}
	mb.release = func() {
		l.mu.Lock()
		if l.mailboxes[target] == mb {
			delete(l.mailboxes, target)
		}
		l.mu.Unlock()
	}
	l.mailboxes[target] = mb

	go func() {
		select {
		case <-ctx.Done():
			mb.Close()
		case <-mb.done:
		}
	}()

	return mb, nil
}

// Close closes every mailbox. Later Send and Listen calls fail with ErrClosed.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	boxes := make([]*mailbox, 0, len(l.mailboxes))
	for _, mb := range l.mailboxes {
		boxes = append(boxes, mb)
	}
	l.mu.Unlock()

	for _, mb := range boxes {
		mb.Close()
	}
	return nil
}

type mailbox struct {
	ch      chan Message
	errs    chan error
	done    chan struct{}
	release func()

	mu      sync.RWMutex
	closed  bool
	senders sync.WaitGroup
}

func (mb *mailbox) send(ctx context.Context, msg Message) error {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return ErrNoReceiver
	}
	mb.senders.Add(1)
	mb.mu.RUnlock()
	defer mb.senders.Done()

	select {
	case mb.ch <- msg:
		return nil
	case <-mb.done:
		return ErrNoReceiver
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *mailbox) Messages() <-chan Message { return mb.ch }

func (mb *mailbox) Errors() <-chan error { return mb.errs }

func (mb *mailbox) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.done)
	mb.mu.Unlock()

	mb.release()
	mb.senders.Wait()
	close(mb.ch)
	close(mb.errs)
	return nil
}
