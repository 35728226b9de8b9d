package ipc

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a Transport over Redis Pub/Sub. Every target maps to one channel
// namespaced by instance name, so several bridges can share a Redis server.
// The transport is thread-safe.
type Redis struct {
	rdb          *redis.Client
	instanceName string
	bufferSize   int
}

// NewRedis creates a Redis transport for the specified instance.
// Returns an error if instanceName is empty.
func NewRedis(redisOpts *redis.Options, instanceName string) (*Redis, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Redis{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		bufferSize:   DefaultMailboxSize,
	}, nil
}

// InboxChannel returns the Pub/Sub channel name for a target.
// Pattern: tuplebridge:{instance_name}:inbox:{target}
func InboxChannel(instanceName, target string) string {
	return fmt.Sprintf("tuplebridge:%s:inbox:%s", instanceName, target)
}

// Close closes the Redis connection. Open inboxes stop receiving.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Send publishes msg as one frame on the target's channel. Redis reports how
// many subscribers received it; zero means nobody is listening.
func (r *Redis) Send(ctx context.Context, target string, msg Message) error {
	if target == "" {
		return ErrEmptyTarget
	}
	frame, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Op, err)
	}
	receivers, err := r.rdb.Publish(ctx, InboxChannel(r.instanceName, target), frame).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Op, err)
	}
	if receivers == 0 {
		return ErrNoReceiver
	}
	return nil
}

// Listen subscribes to the target's channel and waits for Redis to confirm
// the subscription before returning. Context cancellation also closes the inbox.
//
// Frames that fail to decode are reported on Errors() and skipped.
func (r *Redis) Listen(ctx context.Context, target string) (Inbox, error) {
	if target == "" {
		return nil, ErrEmptyTarget
	}

	pubsub := r.rdb.Subscribe(ctx, InboxChannel(r.instanceName, target))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", target, err)
	}

	messages := make(chan Message, r.bufferSize)
	errs := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(messages)
		defer close(errs)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}

				var msg Message
				if err := msg.UnmarshalBinary([]byte(raw.Payload)); err != nil {
					select {
					case errs <- fmt.Errorf("failed to decode frame on %s: %w", target, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case messages <- msg:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &redisInbox{messages: messages, errs: errs, cancel: cancel}, nil
}

type redisInbox struct {
	messages <-chan Message
	errs     <-chan error
	cancel   func()
	once     sync.Once
}

func (i *redisInbox) Messages() <-chan Message { return i.messages }

func (i *redisInbox) Errors() <-chan error { return i.errs }

func (i *redisInbox) Close() error {
	i.once.Do(i.cancel)
	return nil
}
