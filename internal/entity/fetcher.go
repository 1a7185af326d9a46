package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rinconbridge/internal/bus"
	"rinconbridge/internal/clock"
	"rinconbridge/internal/rincon"

	"go.uber.org/zap"
)

// State markers published when a snapshot has no usable name. These are the
// literal values the downstream dashboards key on.
const (
	StateFree    = "Libre"
	StateNone    = "Ninguna"
	StateUnknown = "Desconocido"
)

const refreshTimeout = 15 * time.Second

// DeriveFunc turns a reservation snapshot into the entity's published state
// and attribute set.
type DeriveFunc func(*rincon.Snapshot) (state any, attrs map[string]any)

// FetcherConfig parameterizes a Fetcher. The three date-based sensors and
// the occupancy sensor share all mechanics and differ only here.
type FetcherConfig struct {
	Name     string
	UniqueID string
	Endpoint string
	Derive   DeriveFunc
}

// Fetcher is a snapshot-driven entity. It refreshes on change notifications,
// on the local-midnight boundary, and once on activation; there is no
// periodic polling. A failed refresh keeps the previously published state.
type Fetcher struct {
	cfg      FetcherConfig
	api      *rincon.Client
	notifier *bus.Notifier
	sink     Sink
	clock    clock.Clock
	logger   *zap.Logger

	// refreshMu serializes refreshes so an older response can never
	// overwrite a newer one.
	refreshMu sync.Mutex

	mu          sync.Mutex
	active      bool
	sub         bus.Subscription
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewFetcher creates a snapshot fetcher entity from its configuration.
func NewFetcher(cfg FetcherConfig, api *rincon.Client, notifier *bus.Notifier, sink Sink, clk clock.Clock, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg:      cfg,
		api:      api,
		notifier: notifier,
		sink:     sink,
		clock:    clk,
		logger:   logger.Named("entity").With(zap.String("entity", cfg.UniqueID)),
	}
}

// Name implements Entity.
func (f *Fetcher) Name() string { return f.cfg.Name }

// UniqueID implements Entity.
func (f *Fetcher) UniqueID() string { return f.cfg.UniqueID }

// Activate subscribes to change notifications, starts the midnight refresh
// loop, and performs the initial load.
func (f *Fetcher) Activate() error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return fmt.Errorf("entity %s already active", f.cfg.UniqueID)
	}
	f.active = true
	f.sub = f.notifier.Subscribe(f.Refresh)
	f.stopChan = make(chan struct{})
	f.stoppedChan = make(chan struct{})
	go f.midnightLoop(f.stopChan, f.stoppedChan)
	f.mu.Unlock()

	f.logger.Debug("Entity activated")
	f.Refresh()
	return nil
}

// Deactivate tears down the subscription and the midnight loop. It blocks
// until any in-flight notification delivery has completed.
func (f *Fetcher) Deactivate() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	sub := f.sub
	f.sub = nil
	stopChan := f.stopChan
	stoppedChan := f.stoppedChan
	f.mu.Unlock()

	sub.Unsubscribe()
	close(stopChan)
	<-stoppedChan

	f.logger.Debug("Entity deactivated")
}

// Refresh pulls a fresh snapshot and publishes the derived state. Safe to
// call concurrently; calls are serialized per fetcher. On any failure the
// prior published state is left untouched.
func (f *Fetcher) Refresh() {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	snap, err := f.api.Fetch(ctx, f.cfg.Endpoint)
	if err != nil {
		f.logger.Debug("Refresh skipped", zap.String("endpoint", f.cfg.Endpoint), zap.Error(err))
		return
	}

	state, attrs := f.cfg.Derive(snap)
	if err := f.sink.PublishState(f.cfg.UniqueID, state, attrs); err != nil {
		f.logger.Warn("Failed to publish state", zap.Error(err))
	}
}

// midnightLoop refreshes once at each local-midnight boundary as a catch-up
// for date-relative values.
func (f *Fetcher) midnightLoop(stopChan <-chan struct{}, stoppedChan chan<- struct{}) {
	defer close(stoppedChan)

	for {
		now := f.clock.Now()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

		select {
		case <-f.clock.After(next.Sub(now)):
			f.logger.Debug("Midnight refresh")
			f.Refresh()
		case <-stopChan:
			return
		}
	}
}

// NewOccupancy creates the binary occupancy sensor backed by /api/today.
func NewOccupancy(api *rincon.Client, notifier *bus.Notifier, sink Sink, clk clock.Clock, logger *zap.Logger) *Fetcher {
	return NewFetcher(FetcherConfig{
		Name:     "Ocupado",
		UniqueID: "elrincondelola_ocupado",
		Endpoint: rincon.EndpointToday,
		Derive:   deriveOccupancy,
	}, api, notifier, sink, clk, logger)
}

// NewTodayReservation creates the sensor reporting today's reservation.
func NewTodayReservation(api *rincon.Client, notifier *bus.Notifier, sink Sink, clk clock.Clock, logger *zap.Logger) *Fetcher {
	return NewFetcher(FetcherConfig{
		Name:     "Reserva Hoy",
		UniqueID: "elrincondelola_reserva_hoy",
		Endpoint: rincon.EndpointToday,
		Derive:   deriveToday,
	}, api, notifier, sink, clk, logger)
}

// NewPreviousReservation creates the sensor reporting the previous
// reservation from /api/prev.
func NewPreviousReservation(api *rincon.Client, notifier *bus.Notifier, sink Sink, clk clock.Clock, logger *zap.Logger) *Fetcher {
	return NewFetcher(FetcherConfig{
		Name:     "Anterior Reserva",
		UniqueID: "elrincondelola_reserva_anterior",
		Endpoint: rincon.EndpointPrev,
		Derive:   deriveDated,
	}, api, notifier, sink, clk, logger)
}

// NewNextReservation creates the sensor reporting the next reservation from
// /api/next.
func NewNextReservation(api *rincon.Client, notifier *bus.Notifier, sink Sink, clk clock.Clock, logger *zap.Logger) *Fetcher {
	return NewFetcher(FetcherConfig{
		Name:     "Próxima Reserva",
		UniqueID: "elrincondelola_reserva_proxima",
		Endpoint: rincon.EndpointNext,
		Derive:   deriveDated,
	}, api, notifier, sink, clk, logger)
}

func deriveOccupancy(s *rincon.Snapshot) (any, map[string]any) {
	return s.HasReservation, map[string]any{
		"reserva_hoy":     s.HasReservation,
		"nombre":          s.UserName,
		"cumpleanos":      s.IsBirthday,
		"festivo":         s.IsHoliday,
		"foto_perfil_url": s.ProfilePicURL,
	}
}

func deriveToday(s *rincon.Snapshot) (any, map[string]any) {
	state := StateFree
	if s.HasReservation {
		state = StateUnknown
		if s.UserName != nil && *s.UserName != "" {
			state = *s.UserName
		}
	}
	return state, map[string]any{
		"cumpleanos":      s.IsBirthday,
		"festivo":         s.IsHoliday,
		"foto_perfil_url": s.ProfilePicURL,
	}
}

func deriveDated(s *rincon.Snapshot) (any, map[string]any) {
	state := StateNone
	if s.HasReservation {
		switch {
		case s.UserName != nil && *s.UserName != "":
			state = *s.UserName
		case s.Date != nil && *s.Date != "":
			state = *s.Date
		default:
			state = StateUnknown
		}
	}
	return state, map[string]any{
		"nombre":          s.UserName,
		"cumpleanos":      s.IsBirthday,
		"festivo":         s.IsHoliday,
		"foto_perfil_url": s.ProfilePicURL,
		"fecha":           s.Date,
	}
}
