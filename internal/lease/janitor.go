package lease

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is how often expired leases are swept.
const DefaultJanitorInterval = 60 * time.Second

// Janitor periodically expires leases that were never released, which
// bounds how long a crashed or abandoned terminal can block a seat.
type Janitor struct {
	table    *Table
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor returns a janitor sweeping table every interval.
func NewJanitor(table *Table, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{table: table, interval: interval, logger: logger}
}

// Sweep expires every lease past its expiry and returns how many were removed.
func (j *Janitor) Sweep() int {
	expired := j.table.Expire(j.table.Now())
	for _, l := range expired {
		j.logger.Info("lease expired", "seat_id", l.SeatID, "flight", l.FlightNumber, "holder", l.HolderID)
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	j.logger.Info("lease janitor started", "interval", j.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep()
		}
	}
}
