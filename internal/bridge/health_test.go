package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/tuplebridge/internal/metrics"
	"github.com/dyluth/tuplebridge/internal/subscription"
	"github.com/dyluth/tuplebridge/pkg/tuple"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthServer_Healthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		hs := NewHealthServer(":0", stubPinger{}, subscription.NewRegistry(), nil, zerolog.Nop())
		rec := get(t, hs.Handler(), "/healthz")

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Empty(t, resp.Error)
	})

	t.Run("unhealthy", func(t *testing.T) {
		hs := NewHealthServer(":0", stubPinger{err: errors.New("connection refused")}, subscription.NewRegistry(), nil, zerolog.Nop())
		rec := get(t, hs.Handler(), "/healthz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "connection refused", resp.Error)
	})
}

func TestHealthServer_Subscriptions(t *testing.T) {
	registry := subscription.NewRegistry()
	hs := NewHealthServer(":0", stubPinger{}, registry, nil, zerolog.Nop())

	rec := get(t, hs.Handler(), "/subscriptions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"subscriptions":[]}`, rec.Body.String())

	criteria, err := tuple.FromMap(map[string]any{"type": "chat"})
	require.NoError(t, err)
	_, err = registry.Register(context.Background(), registry.Allocate(), tuple.Local, criteria, nil)
	require.NoError(t, err)

	rec = get(t, hs.Handler(), "/subscriptions")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SubscriptionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, uint64(1), resp.Subscriptions[0].ID)
	assert.Equal(t, "local", resp.Subscriptions[0].Scope)
}

func TestHealthServer_Metrics(t *testing.T) {
	t.Run("served when enabled", func(t *testing.T) {
		m := metrics.New()
		m.RecordRequest("PUBLISH", nil)
		hs := NewHealthServer(":0", stubPinger{}, subscription.NewRegistry(), m, zerolog.Nop())

		rec := get(t, hs.Handler(), "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `tuplebridge_dispatcher_requests_total{op="PUBLISH",status="ok"} 1`)
	})

	t.Run("absent without metrics", func(t *testing.T) {
		hs := NewHealthServer(":0", stubPinger{}, subscription.NewRegistry(), nil, zerolog.Nop())
		assert.Equal(t, http.StatusNotFound, get(t, hs.Handler(), "/metrics").Code)
	})
}

func TestHealthServer_StartAndShutdown(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0", stubPinger{}, subscription.NewRegistry(), nil, zerolog.Nop())
	require.NoError(t, hs.Start())
	assert.NoError(t, hs.Shutdown(context.Background()))
}
