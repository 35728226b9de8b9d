package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/subscription"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves the health, metrics and subscription endpoints.
// The server runs in a background goroutine and can be gracefully shut down.
type HealthServer struct {
	server   *http.Server
	pinger   Pinger
	registry *subscription.Registry
	logger   zerolog.Logger
}

// HealthResponse represents the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SubscriptionsResponse represents the JSON response from the /subscriptions endpoint.
type SubscriptionsResponse struct {
	Count         int                 `json:"count"`
	Subscriptions []subscription.Info `json:"subscriptions"`
}

// NewHealthServer creates the HTTP server listening on addr.
//
// Routes:
//   - GET /healthz: 200 when the store answers PING, 503 otherwise
//   - GET /metrics: prometheus text format
//   - GET /subscriptions: live subscriptions ordered by id
func NewHealthServer(addr string, pinger Pinger, registry *subscription.Registry, m *metrics.Metrics, logger zerolog.Logger) *HealthServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	hs := &HealthServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		pinger:   pinger,
		registry: registry,
		logger:   logger.With().Str("component", "health").Logger(),
	}

	router.GET("/healthz", hs.handleHealthz)
	router.GET("/subscriptions", hs.handleSubscriptions)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return hs
}

// Handler returns the router, for tests.
func (hs *HealthServer) Handler() http.Handler {
	return hs.server.Handler
}

// Start binds the listen address and serves in a background goroutine.
// Returns an error if the address cannot be bound (e.g., port already in use).
func (hs *HealthServer) Start() error {
	ln, err := net.Listen("tcp", hs.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		hs.logger.Debug().Str("addr", ln.Addr().String()).Msg("Health server starting")
		if err := hs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.Error().Err(err).Msg("Health server error")
		}
		hs.logger.Debug().Msg("Health server stopped")
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests until ctx expires.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

func (hs *HealthServer) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := hs.pinger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

func (hs *HealthServer) handleSubscriptions(c *gin.Context) {
	subs := hs.registry.Snapshot()
	c.JSON(http.StatusOK, SubscriptionsResponse{Count: len(subs), Subscriptions: subs})
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}
