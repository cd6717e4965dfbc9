package seatgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSeatLock_SerializesSameSeat(t *testing.T) {
	g := New(time.Second)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.WithSeatLock(context.Background(), "S12A", func(context.Context) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, g.Tracked(), "slots are dropped when idle")
}

func TestWithSeatLock_OtherSeatsProceed(t *testing.T) {
	g := New(time.Second)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.WithSeatLock(context.Background(), "S12A", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = g.WithSeatLock(context.Background(), "S12B", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent seat was blocked")
	}
	close(release)
}

func TestWithSeatLock_Timeout(t *testing.T) {
	g := New(20 * time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.WithSeatLock(context.Background(), "S12A", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ran := false
	err := g.WithSeatLock(context.Background(), "S12A", func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, ran)
}

func TestWithSeatLock_CallerCancelled(t *testing.T) {
	g := New(time.Second)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.WithSeatLock(context.Background(), "S12A", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.WithSeatLock(ctx, "S12A", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithSeatLock_PropagatesError(t *testing.T) {
	g := New(time.Second)
	boom := errors.New("boom")

	err := g.WithSeatLock(context.Background(), "S12A", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
