// Package dispatcher is the protocol state machine of the bridge: it decodes
// inbound requests, drives the tuple space engine and registers the
// resulting subscriptions.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/subscription"
	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

var (
	// ErrUnknownSubscription is returned when Unsubscribe names an id that
	// was never issued or has already been removed.
	ErrUnknownSubscription = errors.New("unknown subscription")

	// ErrMissingReplyTarget is returned when a Subscribe request has no reply target.
	ErrMissingReplyTarget = errors.New("missing reply target")

	// ErrUnsupportedOpcode is returned for opcodes that are not inbound requests.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
)

// Engine is the tuple space the bridge fronts.
type Engine interface {
	// Publish adds t to the space.
	Publish(ctx context.Context, t tuple.Tuple) error

	// Subscribe returns the lazy sequence of tuples matching criteria. The
	// channel is closed when the sequence is exhausted or ctx is cancelled;
	// the engine must stop sending once ctx is done.
	Subscribe(ctx context.Context, criteria tuple.Tuple, scope tuple.Scope) (<-chan tuple.Tuple, error)
}

// Deliverer streams a registered subscription's matches to its reply target.
type Deliverer interface {
	Start(entry *subscription.Entry, target string, matches <-chan tuple.Tuple)
}

// Dispatcher handles inbound requests. It is safe for concurrent use:
// requests from different callers may be dispatched in parallel.
type Dispatcher struct {
	engine   Engine
	registry *subscription.Registry
	channel  ipc.Channel
	delivery Deliverer
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a dispatcher. m may be nil.
func New(engine Engine, registry *subscription.Registry, channel ipc.Channel, delivery Deliverer, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		engine:   engine,
		registry: registry,
		channel:  channel,
		delivery: delivery,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		metrics:  m,
	}
}

// Dispatch handles one inbound request. It returns once the request's state
// change is registered; match delivery continues asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, msg ipc.Message) (err error) {
	defer func() { d.metrics.RecordRequest(msg.Op.String(), err) }()

	switch msg.Op {
	case ipc.OpPublish:
		return d.publish(ctx, msg)
	case ipc.OpSubscribe:
		return d.subscribe(ctx, msg, tuple.Global)
	case ipc.OpSubscribeLocal:
		return d.subscribe(ctx, msg, tuple.Local)
	case ipc.OpUnsubscribe:
		return d.unsubscribe(msg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOpcode, msg.Op)
	}
}

// Reply reports a failed request back to its caller as an Error message.
// Requests without a reply target are only logged.
func (d *Dispatcher) Reply(ctx context.Context, req ipc.Message, reqErr error) {
	if reqErr == nil {
		return
	}
	log := d.logger.With().
		Str("op", req.Op.String()).
		Uint64("subscription_id", req.SubscriptionID).
		Logger()
	log.Warn().Err(reqErr).Msg("Request failed")

	if req.ReplyTo == "" {
		return
	}
	reply := ipc.ErrorMessage(req, reqErr.Error())
	if err := d.channel.Send(ctx, req.ReplyTo, reply); err != nil {
		log.Warn().Err(err).Str("target", req.ReplyTo).Msg("Failed to send error reply")
		return
	}
	d.metrics.RecordDelivery(metrics.KindError)
}

func (d *Dispatcher) publish(ctx context.Context, msg ipc.Message) error {
	t, err := tuple.Deserialize(msg.Payload)
	if err != nil {
		return err
	}
	if err := d.engine.Publish(ctx, t); err != nil {
		return fmt.Errorf("engine publish failed: %w", err)
	}
	d.logger.Debug().Str("tuple", t.String()).Msg("Published tuple")
	return nil
}

func (d *Dispatcher) subscribe(ctx context.Context, msg ipc.Message, scope tuple.Scope) error {
	if msg.ReplyTo == "" {
		return ErrMissingReplyTarget
	}
	criteria, err := tuple.Deserialize(msg.Payload)
	if err != nil {
		return err
	}

	// The subscription outlives the request, so its context is detached
	// from ctx and owned by the registry entry.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	matches, err := d.engine.Subscribe(subCtx, criteria, scope)
	if err != nil {
		cancel()
		return fmt.Errorf("engine subscribe failed: %w", err)
	}

	id := d.registry.Allocate()
	entry, err := d.registry.Register(subCtx, id, scope, criteria, cancel)
	if err != nil {
		cancel()
		d.logger.Error().Err(err).Uint64("subscription_id", id).Msg("Id allocator produced a duplicate")
		return err
	}

	assigned := ipc.Message{Op: ipc.OpSubscriptionAssigned, SubscriptionID: id}
	if err := d.channel.Send(ctx, msg.ReplyTo, assigned); err != nil {
		d.registry.Cancel(id)
		return fmt.Errorf("failed to send subscription id %d: %w", id, err)
	}
	d.metrics.RecordDelivery(metrics.KindAssigned)
	d.metrics.SetActiveSubscriptions(d.registry.Len())

	d.logger.Info().
		Uint64("subscription_id", id).
		Str("scope", scope.String()).
		Str("criteria", criteria.String()).
		Str("target", msg.ReplyTo).
		Msg("Subscription assigned")

	d.delivery.Start(entry, msg.ReplyTo, matches)
	return nil
}

func (d *Dispatcher) unsubscribe(msg ipc.Message) error {
	if !d.registry.Cancel(msg.SubscriptionID) {
		return fmt.Errorf("%w: %d", ErrUnknownSubscription, msg.SubscriptionID)
	}
	d.metrics.SetActiveSubscriptions(d.registry.Len())
	d.logger.Info().Uint64("subscription_id", msg.SubscriptionID).Msg("Subscription cancelled")
	return nil
}
