// Package client is the caller side of the tuplebridge boundary.
//
// A Client sends requests to the bridge and demultiplexes the replies that
// arrive on its own reply target, so any number of subscriptions share one
// target.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// ErrClosed is returned after the client has been closed.
var ErrClosed = errors.New("client: closed")

// RequestError is a failure reported by the bridge.
type RequestError struct {
	Op             ipc.Opcode
	SubscriptionID uint64
	Message        string
}

func (e *RequestError) Error() string {
	if e.SubscriptionID != 0 {
		return fmt.Sprintf("%s %d failed: %s", e.Op, e.SubscriptionID, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

type assignment struct {
	sub *Subscription
	err error
}

// Client talks to one bridge. It is safe for concurrent use.
type Client struct {
	channel ipc.Channel
	inbox   ipc.Inbox
	target  string
	bridge  string
	buffer  int

	// SubscriptionAssigned carries no request correlation, so only one
	// Subscribe may wait for its id at a time.
	subscribeMu sync.Mutex

	mu      sync.Mutex
	pending chan assignment
	subs    map[uint64]*Subscription
	closed  bool

	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithBridgeTarget sets the target requests are sent to. Defaults to ipc.RequestTarget.
func WithBridgeTarget(target string) Option {
	return func(c *Client) { c.bridge = target }
}

// WithBuffer sets the size of each subscription's value channel.
func WithBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// New creates a client that sends through channel and reads replies from
// inbox, which must be listening on target. The client owns the inbox.
func New(channel ipc.Channel, inbox ipc.Inbox, target string, opts ...Option) *Client {
	c := &Client{
		channel: channel,
		inbox:   inbox,
		target:  target,
		bridge:  ipc.RequestTarget,
		buffer:  64,
		subs:    make(map[uint64]*Subscription),
		errs:    make(chan error, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.demux()
	return c
}

// Dial listens on a fresh reply target of transport and returns a client
// using it.
func Dial(ctx context.Context, transport ipc.Transport, opts ...Option) (*Client, error) {
	target := "client-" + uuid.New().String()
	inbox, err := transport.Listen(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on reply target: %w", err)
	}
	return New(transport, inbox, target, opts...), nil
}

// Target returns the reply target of this client.
func (c *Client) Target() string {
	return c.target
}

// Errors reports failures that belong to no subscription, such as a
// rejected Publish. Errors are dropped when nobody reads them.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Done is closed once the client stops receiving replies.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Publish sends t to the bridge. Failures are reported asynchronously on Errors.
func (c *Client) Publish(ctx context.Context, t tuple.Tuple) error {
	payload, err := tuple.Serialize(t)
	if err != nil {
		return err
	}
	return c.send(ctx, ipc.Message{Op: ipc.OpPublish, ReplyTo: c.target, Payload: payload})
}

// Subscribe asks for every tuple matching criteria and waits until the
// bridge assigns the subscription id.
func (c *Client) Subscribe(ctx context.Context, criteria tuple.Tuple) (*Subscription, error) {
	return c.subscribe(ctx, ipc.OpSubscribe, criteria)
}

// SubscribeLocal is Subscribe restricted to tuples published through the
// bridge's own space handle.
func (c *Client) SubscribeLocal(ctx context.Context, criteria tuple.Tuple) (*Subscription, error) {
	return c.subscribe(ctx, ipc.OpSubscribeLocal, criteria)
}

// Unsubscribe cancels subscription id on the bridge. Failures, such as an
// unknown id, are reported asynchronously.
func (c *Client) Unsubscribe(ctx context.Context, id uint64) error {
	return c.send(ctx, ipc.Message{Op: ipc.OpUnsubscribe, SubscriptionID: id, ReplyTo: c.target})
}

// Close stops receiving replies and ends every open subscription locally,
// dropping values nobody has read. It does not unsubscribe on the bridge.
func (c *Client) Close() error {
	err := c.inbox.Close()
	<-c.done
	return err
}

func (c *Client) send(ctx context.Context, msg ipc.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := c.channel.Send(ctx, c.bridge, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Op, err)
	}
	return nil
}

func (c *Client) subscribe(ctx context.Context, op ipc.Opcode, criteria tuple.Tuple) (*Subscription, error) {
	payload, err := tuple.Serialize(criteria)
	if err != nil {
		return nil, err
	}

	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	wait := make(chan assignment, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending = wait
	c.mu.Unlock()

	abandon := func() {
		c.mu.Lock()
		if c.pending == wait {
			c.pending = nil
		}
		c.mu.Unlock()
	}

	if err := c.send(ctx, ipc.Message{Op: op, ReplyTo: c.target, Payload: payload}); err != nil {
		abandon()
		return nil, err
	}

	select {
	case a := <-wait:
		return a.sub, a.err
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) demux() {
	defer c.shutdown()

	messages, errs := c.inbox.Messages(), c.inbox.Errors()
	for messages != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.route(msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.report(err)
		}
	}
}

func (c *Client) route(msg ipc.Message) {
	switch msg.Op {
	case ipc.OpSubscriptionAssigned:
		c.assigned(msg.SubscriptionID)

	case ipc.OpNextValue:
		sub := c.lookup(msg.SubscriptionID)
		if sub == nil {
			return
		}
		t, err := tuple.Deserialize(msg.Payload)
		if err != nil {
			sub.fail(err)
			return
		}
		sub.deliver(t)

	case ipc.OpCompleted:
		c.mu.Lock()
		sub := c.subs[msg.SubscriptionID]
		delete(c.subs, msg.SubscriptionID)
		c.mu.Unlock()
		if sub != nil {
			sub.finish(true)
		}

	case ipc.OpError:
		c.failed(msg)

	default:
		c.report(fmt.Errorf("unexpected reply %s", msg))
	}
}

func (c *Client) assigned(id uint64) {
	c.mu.Lock()
	wait := c.pending
	c.pending = nil
	var sub *Subscription
	if wait != nil {
		sub = newSubscription(c, id, c.buffer)
		c.subs[id] = sub
	}
	c.mu.Unlock()

	if wait == nil {
		// The caller gave up waiting; release the subscription on the bridge.
		go c.Unsubscribe(context.Background(), id)
		return
	}
	wait <- assignment{sub: sub}
}

func (c *Client) failed(msg ipc.Message) {
	op, text, ok := msg.ErrorDetails()
	if !ok {
		c.report(errors.New("malformed error reply"))
		return
	}
	reqErr := &RequestError{Op: op, SubscriptionID: msg.SubscriptionID, Message: text}

	switch op {
	case ipc.OpSubscribe, ipc.OpSubscribeLocal:
		c.mu.Lock()
		wait := c.pending
		c.pending = nil
		c.mu.Unlock()
		if wait != nil {
			wait <- assignment{err: reqErr}
			return
		}
	case ipc.OpUnsubscribe:
		if sub := c.lookup(msg.SubscriptionID); sub != nil {
			sub.fail(reqErr)
			return
		}
	}
	c.report(reqErr)
}

func (c *Client) lookup(id uint64) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Client) report(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = make(map[uint64]*Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.finish(false)
		sub.stop()
	}
	c.closeOnce.Do(func() { close(c.done) })
}
