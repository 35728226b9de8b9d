// Package bridge assembles the tuplebridge service: it listens for requests
// on the request target, dispatches each one concurrently and streams
// subscription matches back through the delivery pipeline.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/internal/config"
	"github.com/dyluth/tuplebridge/internal/delivery"
	"github.com/dyluth/tuplebridge/internal/dispatcher"
	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/subscription"
	"github.com/dyluth/tuplebridge/pkg/ipc"
)

// Space is the tuple space the service fronts.
type Space interface {
	dispatcher.Engine

	// Claim binds the space to this service; it fails if already bound.
	Claim() error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// Service is the bridge between callers on a transport and one tuple space.
type Service struct {
	cfg       *config.Config
	space     Space
	transport ipc.Transport
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	registry   *subscription.Registry
	pipeline   *delivery.Pipeline
	dispatcher *dispatcher.Dispatcher
	health     *HealthServer

	inflight sync.WaitGroup
}

// New creates a service over space and transport. The space is claimed, so
// a second service over the same handle fails with space.ErrAlreadyClaimed.
// m may be nil.
func New(cfg *config.Config, sp Space, transport ipc.Transport, logger zerolog.Logger, m *metrics.Metrics) (*Service, error) {
	if err := sp.Claim(); err != nil {
		return nil, err
	}

	registry := subscription.NewRegistry()
	pipeline := delivery.New(registry, transport, logger, m)

	s := &Service{
		cfg:        cfg,
		space:      sp,
		transport:  transport,
		logger:     logger.With().Str("component", "bridge").Logger(),
		metrics:    m,
		registry:   registry,
		pipeline:   pipeline,
		dispatcher: dispatcher.New(sp, registry, transport, pipeline, logger, m),
	}
	if cfg.HTTPAddr != "" {
		s.health = NewHealthServer(cfg.HTTPAddr, sp, registry, m, logger)
	}
	return s, nil
}

// Registry exposes the live subscriptions, mainly for tests and admin use.
func (s *Service) Registry() *subscription.Registry {
	return s.registry
}

// Run listens on ipc.RequestTarget and handles requests until ctx is
// cancelled. Each request runs in its own goroutine, bounded by
// delivery.max_concurrency.
//
// Graceful shutdown sequence:
//  1. Stop receiving requests
//  2. Wait for in-flight requests to finish
//  3. Cancel every live subscription and wait for delivery workers
//  4. Stop the health server
func (s *Service) Run(ctx context.Context) error {
	inbox, err := s.transport.Listen(ctx, ipc.RequestTarget)
	if err != nil {
		return fmt.Errorf("failed to listen for requests: %w", err)
	}

	if s.health != nil {
		if err := s.health.Start(); err != nil {
			inbox.Close()
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	s.logger.Info().Str("target", ipc.RequestTarget).Msg("Bridge listening for requests")

	sem := make(chan struct{}, s.cfg.Delivery.MaxConcurrency)
	s.serve(ctx, inbox, sem)

	s.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
	inbox.Close()
	s.inflight.Wait()
	s.pipeline.Close()
	s.pipeline.Wait()

	if s.health != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.health.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Health server shutdown failed")
		}
	}
	s.logger.Info().Msg("All workers exited, shutdown complete")
	return nil
}

func (s *Service) serve(ctx context.Context, inbox ipc.Inbox, sem chan struct{}) {
	errs := inbox.Errors()
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-inbox.Messages():
			if !ok {
				s.logger.Warn().Msg("Request inbox closed")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			s.inflight.Add(1)
			go s.handle(ctx, msg, sem)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// Malformed frames are dropped; the service keeps running.
			s.logger.Warn().Err(err).Msg("Dropped malformed request")
			s.metrics.RecordRequest("MALFORMED", err)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg ipc.Message, sem chan struct{}) {
	defer s.inflight.Done()
	defer func() { <-sem }()

	s.logger.Debug().Str("request", msg.String()).Msg("Dispatching request")
	err := s.dispatcher.Dispatch(ctx, msg)
	s.dispatcher.Reply(ctx, msg, err)
}
