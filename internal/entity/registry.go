package entity

import (
	"sync"
	"time"

	"rinconbridge/internal/clock"
)

// Record is the latest published state of one entity.
type Record struct {
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Registry is a Sink that keeps the latest publication per entity, backing
// the bridge's local status API. It never drops a record: a failed refresh
// simply leaves the previous one in place because nothing is published.
type Registry struct {
	clock clock.Clock

	mu      sync.RWMutex
	records map[string]Record
}

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		clock:   clk,
		records: make(map[string]Record),
	}
}

// PublishState implements Sink.
func (r *Registry) PublishState(uniqueID string, state any, attrs map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[uniqueID] = Record{
		State:      state,
		Attributes: attrs,
		UpdatedAt:  r.clock.Now(),
	}
	return nil
}

// Get returns the latest record for an entity.
func (r *Registry) Get(uniqueID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[uniqueID]
	return rec, ok
}

// Snapshot returns a copy of all current records keyed by entity ID.
func (r *Registry) Snapshot() map[string]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Record, len(r.records))
	for id, rec := range r.records {
		out[id] = rec
	}
	return out
}
