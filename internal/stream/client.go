// Package stream owns the long-lived connection to the reservation API's
// event stream. One client runs one read loop: connect, parse SSE frames,
// publish a change notification per assembled event, and reconnect with
// exponential backoff plus jitter whenever the connection drops.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"rinconbridge/internal/bus"
	"rinconbridge/internal/clock"
	"rinconbridge/internal/rincon"
	"rinconbridge/internal/sse"

	"go.uber.org/zap"
)

// Status describes the connection state of the stream client.
type Status string

// Connection states. Stopped is terminal.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusStreaming    Status = "streaming"
	StatusStopped      Status = "stopped"
)

// Thread-safe random source for backoff jitter.
var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func defaultJitter() float64 {
	randMu.Lock()
	defer randMu.Unlock()
	return 0.8 + 0.4*randSource.Float64()
}

// Config controls the reconnect backoff schedule. Zero values are replaced
// with the defaults the upstream API is tuned for.
type Config struct {
	// BackoffInitial is the delay base before the first successful connect.
	BackoffInitial time.Duration

	// BackoffFloor is the delay base restored after a successful connect.
	BackoffFloor time.Duration

	// BackoffCeiling caps the doubling.
	BackoffCeiling time.Duration
}

func (c Config) withDefaults() Config {
	if c.BackoffInitial == 0 {
		c.BackoffInitial = 10 * time.Second
	}
	if c.BackoffFloor == 0 {
		c.BackoffFloor = 5 * time.Second
	}
	if c.BackoffCeiling == 0 {
		c.BackoffCeiling = 300 * time.Second
	}
	return c
}

// Client maintains the SSE connection to {host}/api/events.
type Client struct {
	url      string
	token    string
	cfg      Config
	notifier *bus.Notifier
	clock    clock.Clock
	logger   *zap.Logger
	httpc    *http.Client
	jitter   func() float64

	mu        sync.RWMutex
	status    Status
	backoff   time.Duration
	lastEvent string
	running   bool
	cancel    context.CancelFunc
	stopped   chan struct{}
}

// NewClient creates a stream client for the given base host URL. Events are
// published to notifier; clk drives the backoff waits.
func NewClient(host, token string, cfg Config, notifier *bus.Notifier, clk clock.Clock, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		url:      strings.TrimRight(host, "/") + rincon.EndpointEvents,
		token:    token,
		cfg:      cfg,
		notifier: notifier,
		clock:    clk,
		logger:   logger.Named("stream"),
		// No overall timeout: the stream is expected to stay open
		// indefinitely. Cancellation goes through the request context.
		httpc:   &http.Client{},
		jitter:  defaultJitter,
		status:  StatusDisconnected,
		backoff: cfg.BackoffInitial,
	}
}

// Start launches the read loop. It returns an error if the client is already
// running or has been stopped.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("stream client already started")
	}
	if c.status == StatusStopped {
		return fmt.Errorf("stream client already stopped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.stopped = make(chan struct{})
	c.running = true

	go c.run(ctx)

	c.logger.Info("Stream client started", zap.String("url", c.url))
	return nil
}

// Stop aborts any in-flight connect or read and waits for the loop to
// terminate. No further connection attempts or notifications happen after
// Stop returns. Safe to call more than once.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	stopped := c.stopped
	c.mu.Unlock()

	cancel()
	<-stopped

	c.mu.Lock()
	c.status = StatusStopped
	c.mu.Unlock()

	c.logger.Info("Stream client stopped")
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Backoff returns the current backoff base, before jitter.
func (c *Client) Backoff() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backoff
}

// LastEvent returns the payload of the most recently assembled event, or ""
// if none has been received yet.
func (c *Client) LastEvent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastEvent
}

func (c *Client) run(ctx context.Context) {
	defer close(c.stopped)

	for {
		if ctx.Err() != nil {
			return
		}

		c.setStatus(StatusConnecting)
		err := c.connectAndStream(ctx)
		if ctx.Err() != nil {
			// Deliberate stop, not a failure.
			return
		}

		if errors.Is(err, rincon.ErrAuthInvalid) {
			c.logger.Warn("Stream auth failed (401); token may be invalid or expired, retrying after backoff")
		} else {
			c.logger.Debug("Stream disconnected", zap.Error(err))
		}

		c.setStatus(StatusDisconnected)
		if !c.waitBackoff(ctx) {
			return
		}
	}
}

// connectAndStream performs one connection attempt and, on success, reads the
// stream until it ends. It always returns a non-nil error describing why the
// stream is no longer being read.
func (c *Client) connectAndStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("Connecting to event stream", zap.String("url", c.url))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", rincon.EndpointEvents, rincon.ErrAuthInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return &rincon.StatusError{Endpoint: rincon.EndpointEvents, Code: resp.StatusCode}
	}

	// Connected: restore the backoff floor and start reading.
	c.mu.Lock()
	c.backoff = c.cfg.BackoffFloor
	c.status = StatusStreaming
	c.mu.Unlock()
	c.logger.Info("Event stream connected")

	parser := sse.NewParser()
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		event, emitted, ok := parser.FeedBytes(scanner.Bytes())
		if !ok {
			c.logger.Debug("Skipping undecodable stream line")
			continue
		}
		if emitted {
			c.handleEvent(event)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return errors.New("stream closed by server")
}

// handleEvent records the assembled payload and fans out the change
// notification.
func (c *Client) handleEvent(event string) {
	c.mu.Lock()
	c.lastEvent = event
	c.mu.Unlock()

	c.logger.Debug("Event assembled", zap.String("payload", event))
	c.notifier.Publish()
}

// waitBackoff sleeps for the jittered backoff delay and doubles the base up
// to the ceiling. It returns false if the wait was cancelled.
func (c *Client) waitBackoff(ctx context.Context) bool {
	c.mu.Lock()
	delay := time.Duration(float64(c.backoff) * c.jitter())
	c.backoff *= 2
	if c.backoff > c.cfg.BackoffCeiling {
		c.backoff = c.cfg.BackoffCeiling
	}
	c.mu.Unlock()

	c.logger.Debug("Waiting before reconnect", zap.Duration("delay", delay))

	select {
	case <-c.clock.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}
