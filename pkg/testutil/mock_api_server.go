// Package testutil provides a mock El Rincón de Lola API server for
// integration tests: the three snapshot endpoints with settable responses
// plus a live /api/events SSE stream.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// MockAPIServer simulates the reservation API.
type MockAPIServer struct {
	server *httptest.Server
	token  string

	mu        sync.Mutex
	bodies    map[string]string
	statuses  map[string]int
	requests  map[string]int
	streams   map[chan string]chan struct{}
	connected int32
}

// NewMockAPIServer starts a mock API requiring the given bearer token.
// Snapshot endpoints default to an empty reservation.
func NewMockAPIServer(token string) *MockAPIServer {
	m := &MockAPIServer{
		token:    token,
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
		requests: make(map[string]int),
		streams:  make(map[chan string]chan struct{}),
	}

	for _, endpoint := range []string{"/api/today", "/api/prev", "/api/next"} {
		m.bodies[endpoint] = `{"has_reservation": false}`
		m.statuses[endpoint] = http.StatusOK
	}
	m.statuses["/api/events"] = http.StatusOK

	mux := http.NewServeMux()
	mux.HandleFunc("/api/today", m.handleSnapshot)
	mux.HandleFunc("/api/prev", m.handleSnapshot)
	mux.HandleFunc("/api/next", m.handleSnapshot)
	mux.HandleFunc("/api/events", m.handleEvents)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the base URL of the mock API.
func (m *MockAPIServer) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockAPIServer) Close() {
	m.server.Close()
}

// SetSnapshot sets the JSON body served by a snapshot endpoint.
func (m *MockAPIServer) SetSnapshot(endpoint, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[endpoint] = body
}

// SetStatus sets the HTTP status code served by an endpoint. For the events
// endpoint it applies to new connections; use CloseStreams to drop live ones.
func (m *MockAPIServer) SetStatus(endpoint string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[endpoint] = code
}

// RequestCount returns how many requests an endpoint has served.
func (m *MockAPIServer) RequestCount(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[endpoint]
}

// StreamConnections returns the number of currently open event streams.
func (m *MockAPIServer) StreamConnections() int {
	return int(atomic.LoadInt32(&m.connected))
}

// EmitEvent sends one data-framed event to every connected stream.
func (m *MockAPIServer) EmitEvent(payload string) {
	m.broadcast(fmt.Sprintf("data: %s\n\n", payload))
}

// EmitComment sends a keep-alive comment to every connected stream.
func (m *MockAPIServer) EmitComment() {
	m.broadcast(": ping\n\n")
}

// CloseStreams drops every live event stream from the server side.
func (m *MockAPIServer) CloseStreams() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, done := range m.streams {
		close(done)
		delete(m.streams, ch)
	}
}

func (m *MockAPIServer) broadcast(frame string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.streams {
		select {
		case ch <- frame:
		default:
			// Subscriber not keeping up; drop rather than block the test.
		}
	}
}

func (m *MockAPIServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+m.token
}

func (m *MockAPIServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	body := m.bodies[r.URL.Path]
	code := m.statuses[r.URL.Path]
	m.mu.Unlock()

	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if code == http.StatusOK {
		w.Write([]byte(body))
	}
}

func (m *MockAPIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	code := m.statuses[r.URL.Path]
	m.mu.Unlock()

	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if code != http.StatusOK {
		w.WriteHeader(code)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan string, 16)
	done := make(chan struct{})
	m.mu.Lock()
	m.streams[ch] = done
	m.mu.Unlock()
	atomic.AddInt32(&m.connected, 1)

	defer func() {
		m.mu.Lock()
		delete(m.streams, ch)
		m.mu.Unlock()
		atomic.AddInt32(&m.connected, -1)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case frame := <-ch:
			if _, err := w.Write([]byte(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
