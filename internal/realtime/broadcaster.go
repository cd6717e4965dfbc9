package realtime

import (
	"log/slog"
	"sync"
)

// Broadcaster fans events out to every registry.  Publish only enqueues,
// so callers (including the lease table, which publishes under its own
// lock) never wait on the network.
type Broadcaster struct {
	registries []*Registry
	logger     *slog.Logger

	mu    sync.RWMutex
	sinks []Publisher
}

// NewBroadcaster returns a Broadcaster over registries.
func NewBroadcaster(logger *slog.Logger, registries ...*Registry) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{registries: registries, logger: logger}
}

// AddSink forwards every locally published event to p as well, e.g. the
// cross-instance relay.
func (b *Broadcaster) AddSink(p Publisher) {
	b.mu.Lock()
	b.sinks = append(b.sinks, p)
	b.mu.Unlock()
}

// Publish delivers ev to local connections and forwards it to sinks.
func (b *Broadcaster) Publish(ev Event) {
	b.DeliverLocal(ev)
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(ev)
	}
}

// DeliverLocal delivers ev to local connections only.  Events received
// from other instances enter here so they are never relayed again.
func (b *Broadcaster) DeliverLocal(ev Event) {
	if ev.Kind.FlightScoped() && ev.FlightNumber == "" {
		b.logger.Warn("dropping flight-scoped event without flight", "kind", string(ev.Kind), "seat_id", ev.SeatID)
		return
	}
	total := 0
	for _, r := range b.registries {
		total += r.offer(ev)
	}
	b.logger.Debug("event published",
		"kind", string(ev.Kind), "seat_id", ev.SeatID, "flight", ev.FlightNumber, "reason", ev.Reason, "targets", total)
}

// Registries returns the registries the broadcaster serves.
func (b *Broadcaster) Registries() []*Registry { return b.registries }

// Close shuts down every registry.
func (b *Broadcaster) Close() {
	for _, r := range b.registries {
		r.Close()
	}
}
