package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrUnknownConnection is returned for operations on a connection id
	// the registry does not hold.
	ErrUnknownConnection = errors.New("realtime: unknown connection")
	// ErrRegistryClosed is returned by Register after Close.
	ErrRegistryClosed = errors.New("realtime: registry closed")
)

// Removal reasons passed to OnRemove hooks.
const (
	RemovedClosed     = "closed"
	RemovedStale      = "stale"
	RemovedSendFailed = "send_failed"
	RemovedOverflow   = "outbox_full"
	RemovedShutdown   = "shutdown"
)

// Options tune delivery for every connection of a registry.
type Options struct {
	// QueueSize is the outbox capacity per connection.  A connection whose
	// outbox is full when an event arrives is dropped.
	QueueSize int
	// SendTimeout bounds one Send call.
	SendTimeout time.Duration
	// Retry applies to critical event kinds.  Routine kinds get one try.
	Retry RetryPolicy
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = DefaultRetryPolicy
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Registry holds the live connections of one transport kind.  Each
// registered connection gets its own writer goroutine draining its
// outbox, so a slow or dead client only ever delays itself.
type Registry struct {
	kind   TransportKind
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[string]*Connection
	hooks  []func(c *Connection, reason string)
	closed bool

	wg sync.WaitGroup
}

// NewRegistry returns an empty registry for kind.
func NewRegistry(kind TransportKind, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		kind:   kind,
		opts:   opts.withDefaults(),
		logger: logger.With("transport", string(kind)),
		conns:  make(map[string]*Connection),
	}
}

// Kind returns the transport kind served by the registry.
func (r *Registry) Kind() TransportKind { return r.kind }

// OnRemove adds a hook run after a connection leaves the registry, for
// whatever reason.  Hooks run without registry locks held.
func (r *Registry) OnRemove(fn func(c *Connection, reason string)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Register adds c and starts its writer.
func (r *Registry) Register(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	c.Kind = r.kind
	c.outbox = make(chan Event, r.opts.QueueSize)
	c.touch(r.opts.Now())
	r.conns[c.ID] = c
	r.wg.Add(1)
	go r.pump(c)
	r.logger.Info("connection registered", "conn_id", c.ID, "holder", c.HolderID, "flights", c.Flights())
	return nil
}

// Get returns the connection with id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Subscribe adds flight to the connection's subscriptions.
func (r *Registry) Subscribe(id, flight string) error {
	c, ok := r.Get(id)
	if !ok {
		return ErrUnknownConnection
	}
	c.subscribe(flight)
	c.touch(r.opts.Now())
	return nil
}

// Unsubscribe removes flight from the connection's subscriptions.
func (r *Registry) Unsubscribe(id, flight string) error {
	c, ok := r.Get(id)
	if !ok {
		return ErrUnknownConnection
	}
	c.unsubscribe(flight)
	c.touch(r.opts.Now())
	return nil
}

// Heartbeat records that the connection is alive.
func (r *Registry) Heartbeat(id string) error {
	c, ok := r.Get(id)
	if !ok {
		return ErrUnknownConnection
	}
	c.touch(r.opts.Now())
	return nil
}

// ForFlight returns the connections subscribed to flight.
func (r *Registry) ForFlight(flight string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, c := range r.conns {
		if c.Subscribed(flight) {
			out = append(out, c)
		}
	}
	return out
}

// All returns every connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// HasHolder reports whether any live connection belongs to holderID.
func (r *Registry) HasHolder(holderID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.HolderID == holderID {
			return true
		}
	}
	return false
}

// Remove closes and forgets the connection.  It reports whether the
// connection was present.
func (r *Registry) Remove(id, reason string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	hooks := r.hooks
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.finish(c, reason, hooks)
	return true
}

// Prune removes every connection not heard from since staleBefore and
// returns them.
func (r *Registry) Prune(staleBefore time.Time) []*Connection {
	r.mu.Lock()
	var stale []*Connection
	for id, c := range r.conns {
		if c.LastSeen().Before(staleBefore) {
			delete(r.conns, id)
			stale = append(stale, c)
		}
	}
	hooks := r.hooks
	r.mu.Unlock()
	for _, c := range stale {
		r.finish(c, RemovedStale, hooks)
	}
	return stale
}

// Close removes every connection and waits for their writers to stop.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[string]*Connection)
	hooks := r.hooks
	r.mu.Unlock()
	for _, c := range conns {
		r.finish(c, RemovedShutdown, hooks)
	}
	r.wg.Wait()
}

func (r *Registry) finish(c *Connection, reason string, hooks []func(*Connection, string)) {
	c.close()
	r.logger.Info("connection removed", "conn_id", c.ID, "holder", c.HolderID, "reason", reason)
	for _, h := range hooks {
		h(c, reason)
	}
}

// offer queues ev for every interested connection.  Connections whose
// outbox is full are dropped asynchronously, since offer may run under a
// publisher's lock and removal hooks may take that lock again.  It returns
// the number of connections the event was queued for.
func (r *Registry) offer(ev Event) int {
	var targets []*Connection
	if ev.Kind.FlightScoped() {
		targets = r.ForFlight(ev.FlightNumber)
	} else {
		targets = r.All()
	}
	n := 0
	for _, c := range targets {
		if c.enqueue(ev) {
			n++
			continue
		}
		go r.Remove(c.ID, RemovedOverflow)
	}
	return n
}

// pump is the connection's single writer.
func (r *Registry) pump(c *Connection) {
	defer r.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.outbox:
			if err := r.deliver(c, ev); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				r.logger.Warn("delivery failed, dropping connection",
					"conn_id", c.ID, "kind", string(ev.Kind), "seat_id", ev.SeatID, "flight", ev.FlightNumber, "error", err)
				r.Remove(c.ID, RemovedSendFailed)
				return
			}
		}
	}
}

func (r *Registry) deliver(c *Connection, ev Event) error {
	policy := once
	if ev.Kind.Critical() {
		policy = r.opts.Retry
	}
	return policy.Do(c.ctx, func(attempt int) error {
		ev.Attempt = attempt
		ctx, cancel := context.WithTimeout(c.ctx, r.opts.SendTimeout)
		defer cancel()
		err := c.transport.Send(ctx, ev)
		if err != nil && attempt < policy.Attempts {
			r.logger.Debug("retrying delivery", "conn_id", c.ID, "kind", string(ev.Kind), "attempt", attempt, "error", err)
		}
		return err
	})
}
