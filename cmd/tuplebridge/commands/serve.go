package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/bridge"
	"github.com/dyluth/tuplebridge/internal/logging"
	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/pkg/space"
)

var (
	serveHTTPAddr string
	serveNoHTTP   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge for an instance",
	Long: `Run the bridge service in the foreground.

The bridge listens for requests on the instance's request channel, stores
published tuples in Redis and streams matches to subscribers. It stops
gracefully on SIGINT or SIGTERM.

HTTP endpoints (unless --no-http):
  /healthz        - Redis connectivity
  /metrics        - Prometheus metrics
  /subscriptions  - Live subscriptions

Examples:
  # Serve the default instance against a local Redis
  tuplebridge serve

  # Serve a named instance with a config file
  tuplebridge serve --config tuplebridge.yml --name prod`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "Listen address for health and metrics (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Disable the health and metrics server")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHTTPAddr != "" {
		cfg.HTTPAddr = serveHTTPAddr
	}
	if serveNoHTTP {
		cfg.HTTPAddr = ""
	}

	logger := logging.New("tuplebridge", cfg.LogLevel, os.Stderr).
		With().Str("instance", cfg.Instance).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer transport.Close()

	opts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	sp, err := space.Open(opts, cfg.Instance,
		space.WithBuffer(cfg.Delivery.Buffer),
		space.WithLogger(logging.Component(logger, "space")),
	)
	if err != nil {
		return fmt.Errorf("failed to open space: %w", err)
	}
	defer sp.Close()

	svc, err := bridge.New(cfg, sp, transport, logger, metrics.New())
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	logger.Info().
		Str("origin", sp.Origin()).
		Str("http_addr", cfg.HTTPAddr).
		Msg("Bridge starting")

	if err := svc.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Bridge stopped with error")
		return err
	}
	logger.Info().Msg("Bridge stopped")
	return nil
}
