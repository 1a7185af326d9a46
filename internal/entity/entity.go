// Package entity contains the observable entities the bridge exposes to the
// smart-home side: one occupancy sensor and three reservation sensors that
// pull snapshots from the reservation API, plus a sensor mirroring the raw
// event stream. Entities have an explicit activate/deactivate lifecycle and
// publish their state through the Sink interface, keeping the display layer
// behind a narrow boundary.
package entity

import "go.uber.org/multierr"

// Entity is the lifecycle contract for all bridge entities.
type Entity interface {
	// Name returns the human-readable entity name.
	Name() string

	// UniqueID returns the stable identifier used by sinks.
	UniqueID() string

	// Activate sets up subscriptions, starts background work, and performs
	// the initial state load. Returns an error if already active.
	Activate() error

	// Deactivate tears down subscriptions and background work. After it
	// returns no further publications happen for this entity.
	Deactivate()
}

// Sink receives entity state publications. State is a bool for binary
// entities and a string for everything else; attribute values are
// JSON-marshalable scalars (nil pointers publish as null).
type Sink interface {
	PublishState(uniqueID string, state any, attrs map[string]any) error
}

// MultiSink fans one publication out to several sinks. Every sink is tried;
// errors are combined.
type MultiSink []Sink

// PublishState implements Sink.
func (m MultiSink) PublishState(uniqueID string, state any, attrs map[string]any) error {
	var err error
	for _, sink := range m {
		err = multierr.Append(err, sink.PublishState(uniqueID, state, attrs))
	}
	return err
}
