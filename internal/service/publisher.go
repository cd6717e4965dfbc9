package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/airline-checkin/internal/queue"
)

// CheckInPublisher announces completed check-ins to downstream systems.
type CheckInPublisher interface {
	PublishCheckInCompleted(ctx context.Context, ev queue.CheckInCompletedEvent) error
}

// AMQPPublisher publishes to the durable checkin.completed queue.  Each
// call dials its own connection, so a broker outage costs one failed
// publish and never a wedged client.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, logger: logger.With("component", "checkin-publisher")}
}

// PublishCheckInCompleted sends ev as a persistent JSON message.  Errors
// are logged and returned; callers treat them as non-fatal.
func (p *AMQPPublisher) PublishCheckInCompleted(ctx context.Context, ev queue.CheckInCompletedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.CheckInQueue, true, false, false, false, nil); err != nil {
		p.logger.Warn("queue declare failed", "error", err)
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.CheckInQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish failed", "error", err, "booking", ev.BookingReference)
		return err
	}
	return nil
}
