// Package bus provides the broadcast primitive that decouples the stream
// client from the entities that react to its events. One topic suffices for
// this integration: "remote data changed, pull a fresh snapshot".
package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Handler is invoked once per published notification.
type Handler func()

// Subscription represents an active notifier subscription.
type Subscription interface {
	// Unsubscribe tears the subscription down. After it returns, the handler
	// will not be invoked again and no invocation is in flight. Handlers must
	// not call Unsubscribe on their own subscription.
	Unsubscribe()
}

type subscriber struct {
	mu      sync.Mutex
	handler Handler
	closed  bool
}

type subscription struct {
	id       int
	notifier *Notifier
	sub      *subscriber
}

func (s *subscription) Unsubscribe() {
	s.notifier.remove(s.id)

	// Block until any in-flight delivery completes, then mark closed so
	// pending dispatch goroutines become no-ops.
	s.sub.mu.Lock()
	s.sub.closed = true
	s.sub.mu.Unlock()
}

// Notifier is a many-producer/many-consumer broadcast channel. Publish is
// fire-and-forget: delivery happens on a goroutine per subscriber so a slow
// handler never blocks the publisher.
type Notifier struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewNotifier creates an empty Notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		logger: logger.Named("bus"),
		subs:   make(map[int]*subscriber),
	}
}

// Subscribe registers handler for future notifications. Notifications
// published before Subscribe returns are not delivered; there is no replay.
func (n *Notifier) Subscribe(handler Handler) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	sub := &subscriber{handler: handler}
	n.subs[id] = sub

	return &subscription{id: id, notifier: n, sub: sub}
}

// Publish delivers one notification to every subscriber active at call time.
// It never blocks on slow subscribers.
func (n *Notifier) Publish() {
	n.mu.RLock()
	active := make([]*subscriber, 0, len(n.subs))
	for _, sub := range n.subs {
		active = append(active, sub)
	}
	n.mu.RUnlock()

	n.logger.Debug("Publishing change notification", zap.Int("subscribers", len(active)))

	for _, sub := range active {
		go func(s *subscriber) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return
			}
			s.handler()
		}(sub)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}
