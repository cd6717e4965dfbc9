// Package seatgate serializes assignment attempts per seat inside one
// process.  It complements, and does not replace, the database's own
// isolation: it keeps a second caller from evaluating a seat while the
// first is still mid-transaction on it.
package seatgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds how long a caller waits for a seat's gate.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when the gate could not be entered in time.
var ErrTimeout = errors.New("seatgate: timed out waiting for seat")

// Gate hands out one mutual-exclusion slot per seat id, created on demand
// and dropped again once nobody is waiting on it.
type Gate struct {
	mu      sync.Mutex
	seats   map[string]*slot
	timeout time.Duration
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns a Gate whose waits are bounded by timeout.
func New(timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{seats: make(map[string]*slot), timeout: timeout}
}

// WithSeatLock runs fn while no other fn for the same seatID is running.
// Different seats never wait on each other.  If the gate cannot be entered
// within the timeout, fn is not run and ErrTimeout is returned; if ctx ends
// first, ctx.Err() is returned.
func (g *Gate) WithSeatLock(ctx context.Context, seatID string, fn func(ctx context.Context) error) error {
	s := g.ref(seatID)
	defer g.unref(seatID, s)

	wait, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := s.sem.Acquire(wait, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

// Tracked returns how many seats currently have a live slot.
func (g *Gate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seats)
}

func (g *Gate) ref(seatID string) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.seats[seatID]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		g.seats[seatID] = s
	}
	s.refs++
	return s
}

func (g *Gate) unref(seatID string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.seats, seatID)
	}
}
