package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotdog/internal/config"
	"hotdog/internal/logger"
	"hotdog/pkg/health"
)

func newTestServer(registry *health.CheckerRegistry) *Server {
	return NewServer(config.StatusConfig{Address: "127.0.0.1", Port: 0}, registry, logger.NopLogger())
}

func TestHealthEndpointHealthy(t *testing.T) {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewFuncChecker("dispatcher", func(ctx context.Context) error { return nil }))
	s := newTestServer(registry)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var h health.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, health.StatusHealthy, h.Status)
	assert.Contains(t, h.Checks, "dispatcher")
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewFuncChecker("sink", func(ctx context.Context) error {
		return errors.New("circuit breaker open")
	}))
	s := newTestServer(registry)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var h health.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, health.StatusUnhealthy, h.Status)
	assert.Equal(t, "circuit breaker open", h.Checks["sink"].Message)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(health.NewCheckerRegistry())

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
