// ABOUTME: Tests for gateway construction, health endpoints, and shutdown
// ABOUTME: Exercises the full mux so routing exemptions are covered

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorc/dorc-gateway/internal/config"
)

func TestGateway_HealthNeedsNoCredential(t *testing.T) {
	g, spy := newTestGateway(t, time.Now())

	for _, path := range []string{"/healthz", "/health"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		g.httpServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"], path)
	}
	assert.Zero(t, spy.calls, "health must never reach the backend")
}

func TestGateway_MetricsEndpoint(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Auth:   config.AuthConfig{JWTSecret: gatewayTestSecret},
		Backend: config.BackendConfig{
			BaseURL: "http://127.0.0.1:9",
			Timeout: time.Second,
		},
		Routes:  testRouteConfigs(),
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	g, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	g.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_NewRejectsBadBackendURL(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Auth:    config.AuthConfig{JWTSecret: gatewayTestSecret},
		Backend: config.BackendConfig{BaseURL: "not-a-url", Timeout: time.Second},
		Routes:  testRouteConfigs(),
	}
	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestGateway_NewRejectsShortSecret(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Auth:    config.AuthConfig{JWTSecret: "too-short"},
		Backend: config.BackendConfig{BaseURL: "http://127.0.0.1:9", Timeout: time.Second},
		Routes:  testRouteConfigs(),
	}
	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestGateway_RunStopsOnContextCancel(t *testing.T) {
	g, _ := newTestGateway(t, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down after context cancel")
	}
}
