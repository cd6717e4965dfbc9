package config

import "time"

// CoordinatorConfig tunes seat leases, the per-seat gate, connection
// liveness and broadcast delivery.
type CoordinatorConfig struct {
	LeaseTTL        time.Duration // LEASE_TTL
	SeatGateTimeout time.Duration // SEAT_GATE_TIMEOUT
	JanitorInterval time.Duration // JANITOR_INTERVAL
	HeartbeatWindow time.Duration // HEARTBEAT_WINDOW
	PruneInterval   time.Duration // PRUNE_INTERVAL
	RetryAttempts   int           // BROADCAST_RETRY_ATTEMPTS
	RetryBackoff    time.Duration // BROADCAST_RETRY_BACKOFF
	SendTimeout     time.Duration // BROADCAST_SEND_TIMEOUT
	QueueSize       int           // BROADCAST_QUEUE_SIZE
	RawSocketAddr   string        // RAW_SOCKET_ADDR, empty disables the listener
	RelayChannel    string        // RELAY_CHANNEL
}

// LoadCoordinatorConfig reads the coordinator tunables.  Every value has a
// default; non-positive values fall back to it.
func LoadCoordinatorConfig() CoordinatorConfig {
	c := CoordinatorConfig{
		LeaseTTL:        envDur("LEASE_TTL", 5*time.Minute),
		SeatGateTimeout: envDur("SEAT_GATE_TIMEOUT", 30*time.Second),
		JanitorInterval: envDur("JANITOR_INTERVAL", 60*time.Second),
		HeartbeatWindow: envDur("HEARTBEAT_WINDOW", 2*time.Minute),
		PruneInterval:   envDur("PRUNE_INTERVAL", 30*time.Second),
		RetryAttempts:   envInt("BROADCAST_RETRY_ATTEMPTS", 3),
		RetryBackoff:    envDur("BROADCAST_RETRY_BACKOFF", time.Second),
		SendTimeout:     envDur("BROADCAST_SEND_TIMEOUT", 5*time.Second),
		QueueSize:       envInt("BROADCAST_QUEUE_SIZE", 64),
		RawSocketAddr:   envStr("RAW_SOCKET_ADDR", ":7070"),
		RelayChannel:    envStr("RELAY_CHANNEL", "checkin:events"),
	}
	if v, ok := lookup("RAW_SOCKET_ADDR"); ok {
		c.RawSocketAddr = v
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 5 * time.Minute
	}
	if c.SeatGateTimeout <= 0 {
		c.SeatGateTimeout = 30 * time.Second
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = 60 * time.Second
	}
	if c.HeartbeatWindow <= 0 {
		c.HeartbeatWindow = 2 * time.Minute
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = 30 * time.Second
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	return c
}
