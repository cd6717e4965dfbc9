package realtime

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TransportKind names the wire protocol a connection arrived on.  Each kind
// has its own Registry.
type TransportKind string

const (
	KindHub    TransportKind = "hub"
	KindDuplex TransportKind = "duplex"
	KindRaw    TransportKind = "raw"
)

// Transport delivers events over one client connection.  Send must honour
// ctx's deadline; Close must unblock any pending Send.
type Transport interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Connection is one connected terminal: its transport, the flights it
// follows and when it was last heard from.  Events are queued on the
// connection's outbox and written by a single goroutine, so a connection
// sees events in publish order.
type Connection struct {
	ID       string
	Kind     TransportKind
	HolderID string

	transport Transport

	mu      sync.Mutex
	flights map[string]struct{}

	lastSeen atomic.Int64
	outbox   chan Event

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps t for holderID.  flights are the initial
// subscriptions.
func NewConnection(kind TransportKind, holderID string, t Transport, flights ...string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		ID:        uuid.NewString(),
		Kind:      kind,
		HolderID:  holderID,
		transport: t,
		flights:   make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, f := range flights {
		if f != "" {
			c.flights[f] = struct{}{}
		}
	}
	return c
}

// Subscribed reports whether the connection follows flight.
func (c *Connection) Subscribed(flight string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flights[flight]
	return ok
}

// Flights returns the followed flights in sorted order.
func (c *Connection) Flights() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.flights))
	for f := range c.flights {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (c *Connection) subscribe(flight string) {
	c.mu.Lock()
	c.flights[flight] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) unsubscribe(flight string) {
	c.mu.Lock()
	delete(c.flights, flight)
	c.mu.Unlock()
}

// LastSeen returns when the connection last showed signs of life.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Connection) touch(at time.Time) { c.lastSeen.Store(at.UnixNano()) }

// Done is closed once the connection has been removed from its registry.
// Transports block on it to know when to stop serving.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// enqueue offers ev to the outbox without blocking.
func (c *Connection) enqueue(ev Event) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.outbox <- ev:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.transport.Close()
	})
}
