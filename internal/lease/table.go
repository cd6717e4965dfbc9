// Package lease holds the advisory seat leases staff take while filling in a
// check-in form, and the janitor that reclaims leases nobody released.
package lease

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/realtime"
)

// Table maps seat ids to their current lease.  Every mutation happens under
// one mutex and publishes its event before the mutex is released, so the
// order of SeatLocked/SeatUnlocked events for a seat matches the order of
// the state changes that caused them.
//
// A seat that has been Consumed (permanently assigned) is remembered and can
// never be leased again by this process.
type Table struct {
	mu       sync.Mutex
	leases   map[string]model.SeatLease
	assigned map[string]struct{}

	events realtime.Publisher
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// WithLogger sets the table's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable returns an empty table publishing to events.  A nil publisher
// discards events.
func NewTable(events realtime.Publisher, opts ...Option) *Table {
	if events == nil {
		events = realtime.Discard
	}
	t := &Table{
		leases:   make(map[string]model.SeatLease),
		assigned: make(map[string]struct{}),
		events:   events,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Now returns the table's notion of the current time.
func (t *Table) Now() time.Time { return t.now() }

// TryAcquire takes the lease on seatID for holderID.  It succeeds when the
// seat has no lease, when the existing lease has expired (the stale lease is
// replaced in the same critical section), or when holderID already holds it,
// in which case the expiry is extended.  It fails when another holder has a
// live lease or the seat was already assigned.
func (t *Table) TryAcquire(seatID, flight, holderID string, ttl time.Duration) bool {
	if seatID == "" || holderID == "" || ttl <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, done := t.assigned[seatID]; done {
		return false
	}
	now := t.now()
	cur, ok := t.leases[seatID]
	if ok && !cur.Expired(now) {
		if cur.HolderID != holderID {
			return false
		}
		cur.ExpiresAt = now.Add(ttl)
		t.leases[seatID] = cur
		return true
	}
	if ok {
		// the previous holder never released; announce it before the new lock
		t.events.Publish(realtime.NewSeatUnlocked(seatID, cur.FlightNumber, cur.HolderID, realtime.ReasonExpired, now))
	}
	t.leases[seatID] = model.SeatLease{
		SeatID:       seatID,
		FlightNumber: flight,
		HolderID:     holderID,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(ttl),
	}
	t.events.Publish(realtime.NewSeatLocked(seatID, flight, holderID, now))
	return true
}

// Release drops holderID's lease on seatID.  Releasing a lease held by
// someone else, or no lease at all, is a logged no-op.
func (t *Table) Release(seatID, holderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.leases[seatID]
	if !ok || cur.HolderID != holderID {
		t.logger.Debug("lease release ignored", "seat_id", seatID, "holder", holderID, "held", ok)
		return false
	}
	delete(t.leases, seatID)
	t.events.Publish(realtime.NewSeatUnlocked(seatID, cur.FlightNumber, holderID, realtime.ReasonReleased, t.now()))
	return true
}

// ReleaseAllHeldBy force-releases every lease owned by holderID, announcing
// each with the given reason.  It returns the number of leases released.
func (t *Table) ReleaseAllHeldBy(holderID, reason string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for _, seatID := range t.sortedSeatsLocked() {
		cur := t.leases[seatID]
		if cur.HolderID != holderID {
			continue
		}
		delete(t.leases, seatID)
		t.events.Publish(realtime.NewSeatUnlocked(seatID, cur.FlightNumber, holderID, reason, now))
		n++
	}
	return n
}

// Consume ends the lease on seatID because the seat is now permanently
// assigned, and blocks any later TryAcquire on it.  No SeatUnlocked is
// published: the caller announces SeatAssigned instead.
func (t *Table) Consume(seatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, had := t.leases[seatID]
	delete(t.leases, seatID)
	t.assigned[seatID] = struct{}{}
	return had
}

// Expire removes every lease whose expiry is at or before now, publishing
// SeatUnlocked(reason=expired) for each, and returns the removed leases.
func (t *Table) Expire(now time.Time) []model.SeatLease {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []model.SeatLease
	for _, seatID := range t.sortedSeatsLocked() {
		cur := t.leases[seatID]
		if !cur.Expired(now) {
			continue
		}
		delete(t.leases, seatID)
		t.events.Publish(realtime.NewSeatUnlocked(seatID, cur.FlightNumber, cur.HolderID, realtime.ReasonExpired, now))
		out = append(out, cur)
	}
	return out
}

// HolderOf returns the holder of the live lease on seatID.
func (t *Table) HolderOf(seatID string) (string, bool) {
	l, ok := t.Lease(seatID)
	if !ok {
		return "", false
	}
	return l.HolderID, true
}

// Lease returns the live lease on seatID, if any.
func (t *Table) Lease(seatID string) (model.SeatLease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.leases[seatID]
	if !ok || cur.Expired(t.now()) {
		return model.SeatLease{}, false
	}
	return cur, true
}

// ActiveLeases returns seat id to holder id for every live lease.
func (t *Table) ActiveLeases() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make(map[string]string, len(t.leases))
	for seatID, l := range t.leases {
		if !l.Expired(now) {
			out[seatID] = l.HolderID
		}
	}
	return out
}

// ForFlight returns the live leases on seats of flight, ordered by seat id.
func (t *Table) ForFlight(flight string) []model.SeatLease {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var out []model.SeatLease
	for _, seatID := range t.sortedSeatsLocked() {
		l := t.leases[seatID]
		if l.FlightNumber == flight && !l.Expired(now) {
			out = append(out, l)
		}
	}
	return out
}

// IsAssigned reports whether seatID was consumed by a committed assignment.
func (t *Table) IsAssigned(seatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.assigned[seatID]
	return ok
}

// sortedSeatsLocked returns lease keys in a stable order so that bulk
// operations publish deterministically.  Caller holds t.mu.
func (t *Table) sortedSeatsLocked() []string {
	keys := make([]string, 0, len(t.leases))
	for k := range t.leases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
