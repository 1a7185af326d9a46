package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rinconbridge/internal/bus"
	"rinconbridge/internal/clock"
	"rinconbridge/internal/entity"
	"rinconbridge/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *entity.Registry) {
	logger, _ := zap.NewDevelopment()
	registry := entity.NewRegistry(clock.NewRealClock())
	notifier := bus.NewNotifier(logger)

	cfg := stream.Config{BackoffInitial: 10 * time.Second}
	streamClient := stream.NewClient("https://rincon.example", "tok", cfg, notifier, clock.NewRealClock(), logger)

	return NewServer(registry, streamClient, logger, 0), registry
}

func TestServer_GetState(t *testing.T) {
	server, registry := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	registry.PublishState("elrincondelola_ocupado", true, map[string]any{"reserva_hoy": true})
	registry.PublishState("elrincondelola_reserva_hoy", "Lola", nil)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var state StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))

	assert.Equal(t, string(stream.StatusDisconnected), state.Stream.Status)
	assert.Equal(t, 10.0, state.Stream.BackoffSeconds)
	assert.Empty(t, state.Stream.LastEvent)

	require.Contains(t, state.Entities, "elrincondelola_ocupado")
	assert.Equal(t, true, state.Entities["elrincondelola_ocupado"].State)
	assert.Equal(t, "Lola", state.Entities["elrincondelola_reserva_hoy"].State)
}

func TestServer_GetStateMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/state", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
