package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/tuplebridge/internal/config"
	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/pkg/client"
	"github.com/dyluth/tuplebridge/pkg/ipc"
)

// loadConfig reads --config when given, otherwise starts from defaults and
// the environment. Command-line flags win over both.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"invalid configuration",
				err.Error(),
				map[string]string{"Config": configPath},
				[]string{"Check the file against the documented fields: version, instance, redis_url, http_addr, log_level, delivery"},
			)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, printer.Error("invalid environment", err.Error(), nil)
		}
	}

	if instanceName != "" {
		cfg.Instance = instanceName
	}
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}

// connect opens the Redis transport for cfg and verifies connectivity.
func connect(ctx context.Context, cfg *config.Config) (*ipc.Redis, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	transport, err := ipc.NewRedis(opts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := transport.Ping(pingCtx); err != nil {
		transport.Close()
		return nil, redisUnreachable(cfg, err)
	}
	return transport, nil
}

// dial connects and returns a client talking to the bridge of cfg.Instance.
// The returned func closes both.
func dial(ctx context.Context, cfg *config.Config) (*client.Client, func(), error) {
	transport, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := client.Dial(ctx, transport, client.WithBuffer(cfg.Delivery.Buffer))
	if err != nil {
		transport.Close()
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, func() {
		c.Close()
		transport.Close()
	}, nil
}

// bridgeUnreachable turns a send failure into a user-facing error.
func bridgeUnreachable(cfg *config.Config, err error) error {
	return printer.ErrorWithContext(
		"bridge not reachable",
		err.Error(),
		map[string]string{"Instance": cfg.Instance, "Redis": cfg.RedisURL},
		[]string{fmt.Sprintf("Start a bridge for this instance:\n  tuplebridge serve --name %s", cfg.Instance)},
	)
}

func redisUnreachable(cfg *config.Config, err error) error {
	return printer.ErrorWithContext(
		"Redis connection failed",
		fmt.Sprintf("Could not connect to Redis: %v", err),
		map[string]string{"Redis": cfg.RedisURL},
		[]string{"Check that Redis is running and --redis-url (or REDIS_URL) is correct"},
	)
}

// awaitRejection waits up to d for the bridge to report a failure of a
// fire-and-forget request.
func awaitRejection(c *client.Client, d time.Duration) error {
	select {
	case err := <-c.Errors():
		return err
	case <-time.After(d):
		return nil
	}
}
