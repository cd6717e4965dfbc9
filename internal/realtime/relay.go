package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalDeliverer delivers an event to this instance's connections only.
type LocalDeliverer interface {
	DeliverLocal(ev Event)
}

// Relay mirrors events between service instances over a Redis pub/sub
// channel.  Each instance tags what it sends with its own id and ignores
// its own messages, and relayed events are delivered locally without being
// sent back out.
type Relay struct {
	rdb      *redis.Client
	channel  string
	instance string
	local    LocalDeliverer
	logger   *slog.Logger
	out      chan Event
}

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// NewRelay returns a Relay on channel.  Register it with
// Broadcaster.AddSink and start it with Run.
func NewRelay(rdb *redis.Client, channel string, local LocalDeliverer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		local:    local,
		logger:   logger.With("component", "relay"),
		out:      make(chan Event, 256),
	}
}

// Instance returns the id this relay tags outgoing events with.
func (r *Relay) Instance() string { return r.instance }

// Publish queues ev for other instances.  When the queue is full the event
// is dropped; relaying is best-effort.
func (r *Relay) Publish(ev Event) {
	select {
	case r.out <- ev:
	default:
		r.logger.Warn("relay queue full, dropping event", "kind", string(ev.Kind), "seat_id", ev.SeatID)
	}
}

// Run subscribes to the channel and forwards in both directions until ctx
// ends.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("relay subscribed", "channel", r.channel, "instance", r.instance)

	go r.sendLoop(ctx)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.out:
			payload, err := r.encode(ev)
			if err != nil {
				r.logger.Error("relay encode failed", "error", err)
				continue
			}
			if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil && ctx.Err() == nil {
				r.logger.Warn("relay publish failed", "kind", string(ev.Kind), "error", err)
			}
		}
	}
}

func (r *Relay) encode(ev Event) ([]byte, error) {
	return json.Marshal(relayEnvelope{Origin: r.instance, Event: ev})
}

// handle delivers a message from another instance.  Own messages and
// malformed payloads are ignored.
func (r *Relay) handle(payload string) bool {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn("relay dropped malformed message", "error", err)
		return false
	}
	if env.Origin == r.instance || env.Event.Kind == "" {
		return false
	}
	r.local.DeliverLocal(env.Event)
	return true
}
