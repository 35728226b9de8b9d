package client

import (
	"context"
	"sync"

	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// Subscription is one live subscription on the bridge.
// Caller must call Close() when done unless the subscription completes.
//
// Values are queued by the client's reply loop and handed to the caller by
// a per-subscription goroutine, so a caller that stops reading never stalls
// the other subscriptions sharing the reply target.
type Subscription struct {
	ID uint64

	client *Client
	values chan tuple.Tuple
	errs   chan error
	done   chan struct{}
	wake   chan struct{}
	closed chan struct{}

	mu        sync.Mutex
	queue     []tuple.Tuple
	finished  bool
	completed bool
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newSubscription(c *Client, id uint64, buffer int) *Subscription {
	s := &Subscription{
		ID:     id,
		client: c,
		values: make(chan tuple.Tuple, buffer),
		errs:   make(chan error, 4),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go s.forward()
	return s
}

// Values returns the matching tuples in delivery order. The channel is
// closed when the subscription ends.
func (s *Subscription) Values() <-chan tuple.Tuple {
	return s.values
}

// Errors reports replies that could not be decoded and failed unsubscribes.
func (s *Subscription) Errors() <-chan error {
	return s.errs
}

// Done is closed when the subscription ends and Values is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether the bridge ended the subscription because its
// matches were exhausted.
func (s *Subscription) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Close unsubscribes on the bridge and ends the subscription locally.
// Undelivered values are dropped.
// Safe to call multiple times; only the first call sends Unsubscribe.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stop()
		s.client.forget(s.ID)
		s.finish(false)
		if !s.Completed() {
			err = s.client.Unsubscribe(context.Background(), s.ID)
		}
	})
	return err
}

// stop ends forwarding without waiting for the caller to drain the queue.
func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.closed) })
}

// deliver queues t. It never blocks.
func (s *Subscription) deliver(t tuple.Tuple) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

// finish marks the end of the stream. Values already queued are still
// forwarded unless the subscription is stopped.
func (s *Subscription) finish(completed bool) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.completed = completed
	close(s.errs)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) forward() {
	defer close(s.done)
	defer close(s.values)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		finished := s.finished
		s.mu.Unlock()

		if len(batch) == 0 {
			if finished {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.closed:
				return
			}
		}

		for _, t := range batch {
			select {
			case s.values <- t:
			case <-s.closed:
				return
			}
		}
	}
}
