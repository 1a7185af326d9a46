package entity

import (
	"fmt"
	"sync"

	"rinconbridge/internal/bus"

	"go.uber.org/zap"
)

// StreamSource exposes the last assembled payload of the event stream.
type StreamSource interface {
	LastEvent() string
}

// StreamSensor mirrors the raw event stream: on every change notification it
// publishes the stream's last-seen payload as its state. It never calls the
// REST API.
type StreamSensor struct {
	source   StreamSource
	notifier *bus.Notifier
	sink     Sink
	logger   *zap.Logger

	mu     sync.Mutex
	active bool
	sub    bus.Subscription
}

// NewStreamSensor creates the API stream mirror sensor.
func NewStreamSensor(source StreamSource, notifier *bus.Notifier, sink Sink, logger *zap.Logger) *StreamSensor {
	return &StreamSensor{
		source:   source,
		notifier: notifier,
		sink:     sink,
		logger:   logger.Named("entity").With(zap.String("entity", "elrincondelola_api")),
	}
}

// Name implements Entity.
func (s *StreamSensor) Name() string { return "El Rincón de Lola API" }

// UniqueID implements Entity.
func (s *StreamSensor) UniqueID() string { return "elrincondelola_api" }

// Activate subscribes to change notifications. No initial state is published;
// the sensor stays empty until the first event arrives.
func (s *StreamSensor) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("entity %s already active", s.UniqueID())
	}
	s.active = true
	s.sub = s.notifier.Subscribe(s.publish)
	s.logger.Debug("Entity activated")
	return nil
}

// Deactivate tears down the subscription.
func (s *StreamSensor) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	sub.Unsubscribe()
	s.logger.Debug("Entity deactivated")
}

func (s *StreamSensor) publish() {
	if err := s.sink.PublishState(s.UniqueID(), s.source.LastEvent(), nil); err != nil {
		s.logger.Warn("Failed to publish state", zap.Error(err))
	}
}
