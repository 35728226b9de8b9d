//go:build integration

package bridge

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyluth/tuplebridge/internal/config"
	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/testutil"
	"github.com/dyluth/tuplebridge/pkg/client"
	"github.com/dyluth/tuplebridge/pkg/ipc"
	"github.com/dyluth/tuplebridge/pkg/space"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

// TestBridge_EndToEndOverRedis runs the service, a publisher and a
// subscriber against a real Redis server.
func TestBridge_EndToEndOverRedis(t *testing.T) {
	redisURL := testutil.StartRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.RedisURL = redisURL
	cfg.HTTPAddr = "127.0.0.1:18080"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	sp, err := space.Open(opts, "it")
	if err != nil {
		t.Fatalf("Failed to open space: %v", err)
	}
	defer sp.Close()

	transport, err := ipc.NewRedis(opts, "it")
	if err != nil {
		t.Fatalf("Failed to create transport: %v", err)
	}
	defer transport.Close()

	svc, err := New(cfg, sp, transport, zerolog.Nop(), metrics.New())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	waitHealthy(t, "http://127.0.0.1:18080/healthz")

	subscriber, err := client.Dial(ctx, transport)
	if err != nil {
		t.Fatalf("Failed to dial subscriber: %v", err)
	}
	defer subscriber.Close()

	publisher, err := client.Dial(ctx, transport)
	if err != nil {
		t.Fatalf("Failed to dial publisher: %v", err)
	}
	defer publisher.Close()

	criteria, _ := tuple.FromMap(map[string]any{"type": "chat"})
	sub, err := subscriber.Subscribe(ctx, criteria)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	msg, _ := tuple.FromMap(map[string]any{"type": "chat", "author": "bob", "payload": "hello"})
	if err := publisher.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-sub.Values():
		if !got.Equal(msg) {
			t.Errorf("Expected %s, got %s", msg, got)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for delivery")
	}

	count, err := sp.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored tuple, got %d", count)
	}

	stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Service did not shut down")
	}
}

func waitHealthy(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Service did not become healthy at %s", url)
}
