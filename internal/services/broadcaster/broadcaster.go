// Package broadcaster owns the registry of live alert subscribers and
// fans fraud alerts out to all of them. No other component touches the
// registry; register, unregister and keep-alives are the only mutators.
package broadcaster

import (
	"log"
	"sync"
	"time"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
)

// Subscription is the handle a connected client consumes alerts from.
// The channel is buffered so a slow reader never blocks Broadcast; a
// reader that falls a full buffer behind is treated as dead.
type Subscription struct {
	ClientID string
	Alerts   chan models.Alert
}

type subscriber struct {
	sub      *Subscription
	lastSeen time.Time
}

// Broadcaster maintains the subscriber registry behind a single mutex.
// Broadcast reads a snapshot, so register/unregister during a broadcast
// never corrupt delivery to the remaining subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	cfg         config.BroadcastConfig

	done chan struct{}
	once sync.Once
}

// New creates a broadcaster and starts its keep-alive janitor.
func New(cfg config.BroadcastConfig) *Broadcaster {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = 90 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	b := &Broadcaster{
		subscribers: make(map[string]*subscriber),
		cfg:         cfg,
		done:        make(chan struct{}),
	}
	go b.sweepLoop()
	return b
}

// Register adds a subscriber and returns its subscription handle.
// Re-registering an existing client id replaces the old subscription.
func (b *Broadcaster) Register(clientID string) *Subscription {
	sub := &Subscription{
		ClientID: clientID,
		Alerts:   make(chan models.Alert, b.cfg.BufferSize),
	}

	b.mu.Lock()
	if old, ok := b.subscribers[clientID]; ok {
		close(old.sub.Alerts)
	}
	b.subscribers[clientID] = &subscriber{sub: sub, lastSeen: time.Now()}
	total := len(b.subscribers)
	b.mu.Unlock()

	log.Printf("subscriber %s registered, %d active", clientID, total)
	return sub
}

// Unregister removes a subscription and closes its channel. Removal is
// scoped to the handle, not the client id: a connection whose id was
// taken over by a reconnect cannot tear down its successor.
func (b *Broadcaster) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	removed := b.removeLocked(sub)
	total := len(b.subscribers)
	b.mu.Unlock()

	if removed {
		log.Printf("subscriber %s unregistered, %d remaining", sub.ClientID, total)
	}
}

// removeLocked deletes and closes one subscription, but only while the
// registry still maps the client id to that exact handle. Channel closes
// happen under the mutex that also serializes sends, so a broadcast can
// never race a close.
func (b *Broadcaster) removeLocked(sub *Subscription) bool {
	entry, ok := b.subscribers[sub.ClientID]
	if !ok || entry.sub != sub {
		return false
	}
	delete(b.subscribers, sub.ClientID)
	close(sub.Alerts)
	return true
}

// Touch records a keep-alive from a client. Subscribers that stop
// touching are swept out after the configured timeout.
func (b *Broadcaster) Touch(clientID string) {
	b.mu.Lock()
	if entry, ok := b.subscribers[clientID]; ok {
		entry.lastSeen = time.Now()
	}
	b.mu.Unlock()
}

// Broadcast delivers an alert to every subscriber present at call
// time. Delivery per subscriber is non-blocking: a full buffer counts
// as a send failure and removes that subscriber without affecting the
// others. Zero subscribers is a no-op. Sends never block, so holding
// the mutex across the fan-out keeps closes and sends from racing
// without delaying the scoring path.
func (b *Broadcaster) Broadcast(alert models.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var failed []*Subscription
	for _, entry := range b.subscribers {
		select {
		case entry.sub.Alerts <- alert:
		default:
			failed = append(failed, entry.sub)
		}
	}

	for _, sub := range failed {
		log.Printf("subscriber %s not draining alerts, removing", sub.ClientID)
		b.removeLocked(sub)
	}
}

// ActiveCount reports the registry size for the status endpoint.
func (b *Broadcaster) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close stops the janitor and drops all subscribers.
func (b *Broadcaster) Close() {
	b.once.Do(func() { close(b.done) })

	b.mu.Lock()
	for id, entry := range b.subscribers {
		close(entry.sub.Alerts)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) sweepLoop() {
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.done:
			return
		}
	}
}

// sweep removes subscribers whose last keep-alive is older than the
// timeout, so abandoned connections cannot grow the registry forever.
// Staleness is checked and acted on in one critical section, so a
// keep-alive arriving mid-sweep keeps its subscriber alive.
func (b *Broadcaster) sweep() {
	cutoff := time.Now().Add(-b.cfg.KeepAliveTimeout)

	b.mu.Lock()
	var stale []string
	for id, entry := range b.subscribers {
		if entry.lastSeen.Before(cutoff) {
			stale = append(stale, id)
			b.removeLocked(entry.sub)
		}
	}
	b.mu.Unlock()

	for _, id := range stale {
		log.Printf("subscriber %s missed keep-alives, removed", id)
	}
}
