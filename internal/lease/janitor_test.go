package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/airline-checkin/internal/realtime"
)

func TestJanitorSweep_AnnouncesExpiryOnce(t *testing.T) {
	table, rec, clk := newTestTable(t)
	j := NewJanitor(table, time.Minute, nil)

	require.True(t, table.TryAcquire("S12A", "MR101", "staff1", time.Second))
	require.True(t, table.TryAcquire("S14C", "MR101", "staff1", time.Hour))

	assert.Equal(t, 0, j.Sweep(), "nothing expired yet")

	clk.Advance(1100 * time.Millisecond)
	assert.Equal(t, 1, j.Sweep())
	assert.Equal(t, 0, j.Sweep(), "second sweep finds nothing")

	assert.Equal(t, 1, rec.count(realtime.SeatUnlocked, realtime.ReasonExpired))
	assert.True(t, table.TryAcquire("S12A", "MR101", "staff2", time.Second))
	assert.Equal(t, map[string]string{"S12A": "staff2", "S14C": "staff1"}, table.ActiveLeases())
}

func TestJanitorRun_StopsOnCancel(t *testing.T) {
	table := NewTable(nil)
	j := NewJanitor(table, 5*time.Millisecond, nil)

	require.True(t, table.TryAcquire("S12A", "MR101", "staff1", time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	assert.Eventually(t, func() bool {
		table.mu.Lock()
		defer table.mu.Unlock()
		return len(table.leases) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
