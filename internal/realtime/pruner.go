package realtime

import (
	"context"
	"log/slog"
	"time"
)

// LeaseReleaser force-releases every lease of a holder.
type LeaseReleaser interface {
	ReleaseAllHeldBy(holderID, reason string) int
}

// DefaultHeartbeatWindow is how long a connection may stay silent.
const DefaultHeartbeatWindow = 2 * time.Minute

// Pruner drops connections that stopped heartbeating and releases the
// leases of holders left without any live connection.  The release also
// runs when a connection leaves for any other reason than shutdown.
type Pruner struct {
	registries []*Registry
	leases     LeaseReleaser
	window     time.Duration
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewPruner hooks into registries and returns a Pruner.  now may be nil.
func NewPruner(leases LeaseReleaser, window, interval time.Duration, now func() time.Time, logger *slog.Logger, registries ...*Registry) *Pruner {
	if window <= 0 {
		window = DefaultHeartbeatWindow
	}
	if interval <= 0 {
		interval = window / 4
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{
		registries: registries,
		leases:     leases,
		window:     window,
		interval:   interval,
		now:        now,
		logger:     logger,
	}
	for _, r := range registries {
		r.OnRemove(p.connectionGone)
	}
	return p
}

// Sweep prunes every registry once and returns how many connections went.
func (p *Pruner) Sweep() int {
	staleBefore := p.now().Add(-p.window)
	n := 0
	for _, r := range p.registries {
		n += len(r.Prune(staleBefore))
	}
	return n
}

// Run sweeps on every tick until ctx ends.
func (p *Pruner) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := p.Sweep(); n > 0 {
				p.logger.Info("pruned stale connections", "count", n)
			}
		}
	}
}

func (p *Pruner) connectionGone(c *Connection, reason string) {
	if c.HolderID == "" || reason == RemovedShutdown {
		return
	}
	for _, r := range p.registries {
		if r.HasHolder(c.HolderID) {
			return
		}
	}
	if n := p.leases.ReleaseAllHeldBy(c.HolderID, ReasonDisconnected); n > 0 {
		p.logger.Info("released leases of disconnected holder", "holder", c.HolderID, "count", n, "conn_id", c.ID, "reason", reason)
	}
}
