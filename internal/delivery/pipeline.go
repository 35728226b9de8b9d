// Package delivery streams the matches of each subscription back to its
// caller.
//
// Every subscription gets one worker goroutine. The worker is the only
// sender for that subscription, so NextValue messages leave in match order
// and Completed, when it is sent at all, is the last message for the id.
package delivery

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/subscription"
	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// Pipeline runs the delivery workers of one service.
type Pipeline struct {
	registry *subscription.Registry
	channel  ipc.Channel
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline that sends through channel. m may be nil.
func New(registry *subscription.Registry, channel ipc.Channel, logger zerolog.Logger, m *metrics.Metrics) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		registry: registry,
		channel:  channel,
		logger:   logger.With().Str("component", "delivery").Logger(),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker for entry. matches is the lazy sequence produced
// by the engine; it must be closed when exhausted or when the subscription's
// context is cancelled.
func (p *Pipeline) Start(entry *subscription.Entry, target string, matches <-chan tuple.Tuple) {
	p.wg.Add(1)
	go p.run(entry, target, matches)
}

// Wait blocks until every worker has exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels every registered subscription and aborts in-flight sends.
// Call Wait afterwards to join the workers.
func (p *Pipeline) Close() {
	n := p.registry.CancelAll()
	p.cancel()
	p.metrics.SetActiveSubscriptions(p.registry.Len())
	if n > 0 {
		p.logger.Info().Int("cancelled", n).Msg("Cancelled live subscriptions on shutdown")
	}
}

func (p *Pipeline) run(entry *subscription.Entry, target string, matches <-chan tuple.Tuple) {
	defer p.wg.Done()
	log := p.logger.With().Uint64("subscription_id", entry.ID).Str("target", target).Logger()
	log.Debug().Msg("Delivery worker started")

	// NextValue sends end on Unsubscribe as well as on shutdown.
	sendCtx, stop := context.WithCancel(entry.Context())
	defer stop()
	defer context.AfterFunc(p.ctx, stop)()

	for t := range matches {
		// Unsubscribe may have landed since the last emission.
		if !entry.Live() {
			log.Debug().Msg("Subscription no longer live, stopping delivery")
			return
		}

		payload, err := tuple.Serialize(t)
		if err != nil {
			log.Error().Err(err).Msg("Skipping match that cannot be serialized")
			continue
		}

		msg := ipc.Message{Op: ipc.OpNextValue, SubscriptionID: entry.ID, Payload: payload}
		if err := p.channel.Send(sendCtx, target, msg); err != nil {
			if !entry.Live() {
				log.Debug().Msg("Subscription cancelled during delivery")
				return
			}
			log.Warn().Err(err).Msg("Failed to deliver value, cancelling subscription")
			p.registry.Cancel(entry.ID)
			p.metrics.SetActiveSubscriptions(p.registry.Len())
			return
		}
		p.metrics.RecordDelivery(metrics.KindNext)
	}

	// Matches exhausted. Once Complete wins, Cancel can no longer succeed,
	// so Completed never follows a successful Unsubscribe.
	if !p.registry.Complete(entry.ID) {
		log.Debug().Msg("Subscription ended by cancellation")
		return
	}
	if err := p.channel.Send(p.ctx, target, ipc.Message{Op: ipc.OpCompleted, SubscriptionID: entry.ID}); err != nil {
		log.Warn().Err(err).Msg("Failed to deliver completion")
	} else {
		p.metrics.RecordDelivery(metrics.KindCompleted)
	}
	p.registry.Remove(entry.ID)
	p.metrics.SetActiveSubscriptions(p.registry.Len())
	log.Debug().Msg("Subscription completed")
}
