package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	got      []Event
	failures int  // fail this many sends, then succeed
	failAll  bool // fail every send
	block    bool // block until ctx is done
	closed   bool
}

func (f *fakeTransport) Send(ctx context.Context, ev Event) error {
	f.mu.Lock()
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("broken pipe")
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary failure")
	}
	f.got = append(f.got, ev)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.got...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testOptions() Options {
	return Options{QueueSize: 16, SendTimeout: 50 * time.Millisecond, Retry: RetryPolicy{Attempts: 3, Backoff: time.Millisecond}}
}

func register(t *testing.T, r *Registry, holder string, tr Transport, flights ...string) *Connection {
	t.Helper()
	c := NewConnection(r.Kind(), holder, tr, flights...)
	require.NoError(t, r.Register(c))
	return c
}

func TestBroadcast_FlightScoping(t *testing.T) {
	hub := NewRegistry(KindHub, testOptions(), nil)
	raw := NewRegistry(KindRaw, testOptions(), nil)
	b := NewBroadcaster(nil, hub, raw)
	defer b.Close()

	mr101 := &fakeTransport{}
	mr102 := &fakeTransport{}
	register(t, hub, "staff1", mr101, "MR101")
	register(t, raw, "staff2", mr102, "MR102")

	now := time.Now()
	b.Publish(NewSeatAssigned("S12A", "12A", "MR101", "Ada Lovelace", "staff1", now))
	b.Publish(NewSeatLocked("X01A", "MR102", "staff2", now))
	b.Publish(NewFlightStatusChanged("MR101", "DELAYED", now))

	require.Eventually(t, func() bool { return len(mr101.events()) == 2 && len(mr102.events()) == 2 }, time.Second, time.Millisecond)
	got := mr101.events()
	assert.Equal(t, SeatAssigned, got[0].Kind)
	assert.Equal(t, "S12A", got[0].SeatID)
	assert.Equal(t, FlightStatusChanged, got[1].Kind)

	other := mr102.events()
	assert.Equal(t, SeatLocked, other[0].Kind)
	assert.Equal(t, FlightStatusChanged, other[1].Kind, "status changes reach every connection")
}

func TestBroadcast_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewRegistry(KindHub, testOptions(), nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	tr := &fakeTransport{}
	c := register(t, hub, "staff1", tr)

	b.Publish(NewSeatLocked("S12A", "MR101", "staff9", time.Now()))
	require.NoError(t, hub.Subscribe(c.ID, "MR101"))
	b.Publish(NewSeatLocked("S14C", "MR101", "staff9", time.Now()))
	require.Eventually(t, func() bool { return len(tr.events()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "S14C", tr.events()[0].SeatID)

	require.NoError(t, hub.Unsubscribe(c.ID, "MR101"))
	b.Publish(NewSeatLocked("S15D", "MR101", "staff9", time.Now()))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, tr.events(), 1)

	assert.ErrorIs(t, hub.Subscribe("missing", "MR101"), ErrUnknownConnection)
}

func TestBroadcast_PerConnectionOrder(t *testing.T) {
	hub := NewRegistry(KindHub, Options{QueueSize: 256, SendTimeout: time.Second}, nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	tr := &fakeTransport{}
	register(t, hub, "staff1", tr, "MR101")
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			b.Publish(NewSeatLocked("S12A", "MR101", "staff1", time.Unix(int64(i), 0)))
		} else {
			b.Publish(NewSeatUnlocked("S12A", "MR101", "staff1", ReasonReleased, time.Unix(int64(i), 0)))
		}
	}
	require.Eventually(t, func() bool { return len(tr.events()) == 100 }, time.Second, time.Millisecond)
	for i, ev := range tr.events() {
		assert.Equal(t, int64(i), ev.Timestamp.Unix())
	}
}

func TestBroadcast_RoutineFailureDropsConnection(t *testing.T) {
	hub := NewRegistry(KindHub, testOptions(), nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	bad := &fakeTransport{failures: 1}
	good := &fakeTransport{}
	cb := register(t, hub, "staff1", bad, "MR101")
	register(t, hub, "staff2", good, "MR101")

	b.Publish(NewSeatLocked("S12A", "MR101", "staff2", time.Now()))

	require.Eventually(t, func() bool { _, ok := hub.Get(cb.ID); return !ok }, time.Second, time.Millisecond)
	assert.True(t, bad.isClosed())
	assert.Empty(t, bad.events(), "routine events are not retried")
	require.Eventually(t, func() bool { return len(good.events()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, hub.Len())
}

func TestBroadcast_CriticalEventsRetried(t *testing.T) {
	hub := NewRegistry(KindHub, testOptions(), nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	flaky := &fakeTransport{failures: 2}
	c := register(t, hub, "staff1", flaky, "MR101")

	b.Publish(NewSeatAssigned("S12A", "12A", "MR101", "Ada Lovelace", "staff2", time.Now()))

	require.Eventually(t, func() bool { return len(flaky.events()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 3, flaky.events()[0].Attempt)
	_, ok := hub.Get(c.ID)
	assert.True(t, ok, "connection survives a retried delivery")
}

func TestBroadcast_CriticalRetryBudgetExhausted(t *testing.T) {
	hub := NewRegistry(KindHub, testOptions(), nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	dead := &fakeTransport{failAll: true}
	c := register(t, hub, "staff1", dead, "MR101")

	b.Publish(NewFlightStatusChanged("MR101", "CANCELLED", time.Now()))
	require.Eventually(t, func() bool { _, ok := hub.Get(c.ID); return !ok }, time.Second, time.Millisecond)
}

func TestBroadcast_SlowConnectionDoesNotDelayOthers(t *testing.T) {
	opts := testOptions()
	opts.SendTimeout = 500 * time.Millisecond
	hub := NewRegistry(KindHub, opts, nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	slow := &fakeTransport{block: true}
	fast := &fakeTransport{}
	cs := register(t, hub, "staff1", slow, "MR101")
	register(t, hub, "staff2", fast, "MR101")

	start := time.Now()
	b.Publish(NewSeatLocked("S12A", "MR101", "staff2", time.Now()))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish never waits on a send")

	require.Eventually(t, func() bool { return len(fast.events()) == 1 }, 200*time.Millisecond, time.Millisecond)
	require.Eventually(t, func() bool { _, ok := hub.Get(cs.ID); return !ok }, 2*time.Second, 5*time.Millisecond,
		"send timeout marks the slow connection dead")
}

func TestBroadcast_FullOutboxDropsConnection(t *testing.T) {
	hub := NewRegistry(KindHub, Options{QueueSize: 1, SendTimeout: time.Second}, nil)
	b := NewBroadcaster(nil, hub)
	defer b.Close()

	stuck := &fakeTransport{block: true}
	c := register(t, hub, "staff1", stuck, "MR101")
	for i := 0; i < 5; i++ {
		b.Publish(NewSeatLocked("S12A", "MR101", "staff2", time.Now()))
	}
	require.Eventually(t, func() bool { _, ok := hub.Get(c.ID); return !ok }, time.Second, time.Millisecond)
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkRecorder) Publish(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func TestBroadcast_SinksSeeLocalPublishesOnly(t *testing.T) {
	b := NewBroadcaster(nil, NewRegistry(KindHub, testOptions(), nil))
	defer b.Close()
	sink := &sinkRecorder{}
	b.AddSink(sink)

	b.Publish(NewSeatLocked("S12A", "MR101", "staff1", time.Now()))
	b.DeliverLocal(NewSeatLocked("S14C", "MR101", "staff1", time.Now()))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "S12A", sink.events[0].SeatID)
}

func TestRetryPolicy(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3}.Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryPolicy{Attempts: 3}.Do(context.Background(), func(int) error {
		calls++
		if calls < 2 {
			return errors.New("nope")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryPolicy{}.Do(context.Background(), func(int) error { calls++; return errors.New("nope") })
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "zero attempts means one try")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryPolicy{Attempts: 3, Backoff: time.Hour}.Do(ctx, func(int) error { return errors.New("nope") })
	assert.ErrorIs(t, err, context.Canceled)
}
