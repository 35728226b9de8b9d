package space

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/pkg/tuple"
)

var (
	// ErrAlreadyClaimed is returned by Claim when the space is already bound.
	ErrAlreadyClaimed = errors.New("space: store is being initialized more than once")

	// ErrEmptyTuple is returned when publishing a tuple with no fields.
	ErrEmptyTuple = errors.New("space: tuple has no fields")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("space: closed")
)

// DefaultBuffer is the default size of a subscription's match channel.
const DefaultBuffer = 64

// Option configures a Space.
type Option func(*Space)

// WithBuffer sets the size of each subscription's match channel.
func WithBuffer(n int) Option {
	return func(s *Space) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithOrigin sets the origin id stamped on published tuples. Local
// subscriptions only see tuples with this origin.
func WithOrigin(origin string) Option {
	return func(s *Space) {
		if origin != "" {
			s.origin = origin
		}
	}
}

// WithLogger sets the logger used for skipped records and events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Space) {
		s.logger = l.With().Str("component", "space").Logger()
	}
}

// Space is a Redis-backed tuple space scoped to one instance name.
// Every handle has its own origin, which is what Local subscriptions filter
// on. The space is thread-safe.
type Space struct {
	rdb          *redis.Client
	instanceName string
	origin       string
	buffer       int
	logger       zerolog.Logger

	claimed atomic.Bool

	mu       sync.Mutex
	isClosed bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// Open creates a space for the specified instance.
// Returns an error if instanceName is empty.
func Open(redisOpts *redis.Options, instanceName string, opts ...Option) (*Space, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	s := &Space{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		origin:       uuid.New().String(),
		buffer:       DefaultBuffer,
		logger:       zerolog.Nop(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Origin returns the origin id of this handle.
func (s *Space) Origin() string {
	return s.origin
}

// InstanceName returns the namespace of this space.
func (s *Space) InstanceName() string {
	return s.instanceName
}

// Claim binds the space to a single owner. The second and later calls
// return ErrAlreadyClaimed.
func (s *Space) Claim() error {
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrAlreadyClaimed
	}
	return nil
}

// Close ends every open subscription, so their match sequences complete,
// then closes the Redis connection. Safe to call multiple times.
func (s *Space) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Space) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Space) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Publish stores t and announces it to subscribers.
//
// The record is written as a hash at tuplebridge:{instance}:tuple:{id} and
// appended to the history list in one transaction, then published on
// tuplebridge:{instance}:tuple_events.
func (s *Space) Publish(ctx context.Context, t tuple.Tuple) error {
	_, err := s.publish(ctx, t)
	return err
}

// PublishRecord is Publish returning the stored record.
func (s *Space) PublishRecord(ctx context.Context, t tuple.Tuple) (Record, error) {
	return s.publish(ctx, t)
}

func (s *Space) publish(ctx context.Context, t tuple.Tuple) (Record, error) {
	if s.closed() {
		return Record{}, ErrClosed
	}
	if t.Len() == 0 {
		return Record{}, ErrEmptyTuple
	}

	rec := Record{
		ID:            uuid.New().String(),
		Origin:        s.origin,
		PublishedAtMs: time.Now().UnixMilli(),
		Tuple:         t,
	}
	hash, err := RecordToHash(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to serialize tuple: %w", err)
	}
	event, err := EncodeEvent(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode tuple event: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, TupleKey(s.instanceName, rec.ID), hash)
		pipe.RPush(ctx, TuplesKey(s.instanceName), rec.ID)
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to write tuple to Redis: %w", err)
	}

	if err := s.rdb.Publish(ctx, TupleEventsChannel(s.instanceName), event).Err(); err != nil {
		return Record{}, fmt.Errorf("failed to publish tuple event: %w", err)
	}
	return rec, nil
}

// Get retrieves a record by id.
// Returns redis.Nil if it doesn't exist; use IsNotFound to check.
func (s *Space) Get(ctx context.Context, id string) (Record, error) {
	hash, err := s.rdb.HGetAll(ctx, TupleKey(s.instanceName, id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read tuple from Redis: %w", err)
	}
	if len(hash) == 0 {
		return Record{}, redis.Nil
	}
	rec, err := HashToRecord(id, hash)
	if err != nil {
		return Record{}, fmt.Errorf("failed to deserialize tuple %s: %w", id, err)
	}
	return rec, nil
}

// Count returns the number of tuples in the space.
func (s *Space) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.LLen(ctx, TuplesKey(s.instanceName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count tuples: %w", err)
	}
	return n, nil
}

// ScanIDs returns the ids of stored tuples starting with prefix. It uses
// SCAN, so it does not block the server on large spaces.
func (s *Space) ScanIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := TupleKey(s.instanceName, "")
	iter := s.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tuples: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Window bounds a history query by publication time. Zero bounds are open.
type Window struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether ms falls inside the window.
func (w Window) Contains(ms int64) bool {
	if !w.Since.IsZero() && ms < w.Since.UnixMilli() {
		return false
	}
	if !w.Until.IsZero() && ms > w.Until.UnixMilli() {
		return false
	}
	return true
}

// History returns the stored records matching criteria inside w, in
// publication order. Records that cannot be read are skipped and logged.
func (s *Space) History(ctx context.Context, criteria tuple.Tuple, w Window) ([]Record, error) {
	ids, err := s.rdb.LRange(ctx, TuplesKey(s.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tuples: %w", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("tuple_id", id).Msg("Skipping unreadable tuple")
			continue
		}
		if !w.Contains(rec.PublishedAtMs) || !tuple.Matches(criteria, rec.Tuple) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Subscribe returns the tuples matching criteria: first those already in
// the space, in publication order, then new ones as they are published.
// A Local subscription only sees tuples published through this handle.
//
// The channel is closed when ctx is cancelled or the space is closed. The
// event subscription is confirmed before history is read, so a tuple
// published concurrently is seen at least once; duplicates are dropped by id.
func (s *Space) Subscribe(ctx context.Context, criteria tuple.Tuple, scope tuple.Scope) (<-chan tuple.Tuple, error) {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	pubsub := s.rdb.Subscribe(ctx, TupleEventsChannel(s.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		s.wg.Done()
		return nil, fmt.Errorf("failed to subscribe to tuple events: %w", err)
	}

	ids, err := s.rdb.LRange(ctx, TuplesKey(s.instanceName), 0, -1).Result()
	if err != nil {
		pubsub.Close()
		s.wg.Done()
		return nil, fmt.Errorf("failed to list tuples: %w", err)
	}

	out := make(chan tuple.Tuple, s.buffer)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer pubsub.Close()

		seen := make(map[string]struct{}, len(ids))
		emit := func(rec Record) bool {
			if _, dup := seen[rec.ID]; dup {
				return true
			}
			seen[rec.ID] = struct{}{}
			if scope == tuple.Local && rec.Origin != s.origin {
				return true
			}
			if !tuple.Matches(criteria, rec.Tuple) {
				return true
			}
			select {
			case out <- rec.Tuple:
				return true
			case <-ctx.Done():
				return false
			case <-s.done:
				return false
			}
		}

		for _, id := range ids {
			rec, err := s.Get(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("tuple_id", id).Msg("Skipping unreadable tuple")
				continue
			}
			if !emit(rec) {
				return
			}
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				rec, err := DecodeEvent([]byte(msg.Payload))
				if err != nil {
					s.logger.Warn().Err(err).Msg("Skipping malformed tuple event")
					continue
				}
				if !emit(rec) {
					return
				}
			}
		}
	}()

	return out, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
