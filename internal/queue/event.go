// Package queue defines the messages exchanged over RabbitMQ and the
// consumer that turns completed check-ins into an audit log.
package queue

import (
	"fmt"
	"time"
)

// CheckInQueue is the durable queue receiving CheckInCompletedEvent.
const CheckInQueue = "checkin.completed"

// CheckInCompletedEvent is published after a seat assignment commits.  It
// carries enough for downstream consumers (audit, boarding pass
// rendering, notifications) to act without reading the database.
type CheckInCompletedEvent struct {
	BookingReference string    `json:"booking_reference"`
	PassengerName    string    `json:"passenger_name"`
	FlightNumber     string    `json:"flight_number"`
	SeatID           string    `json:"seat_id"`
	SeatNumber       string    `json:"seat_number"`
	StaffID          string    `json:"staff_id"`
	CheckedInAt      time.Time `json:"checked_in_at"`
}

// LogLine renders the event as one audit log line.
func (e CheckInCompletedEvent) LogLine() string {
	return fmt.Sprintf("[%s] Check-in completed | booking=%s | passenger=%q | flight=%s | seat=%s (%s) | staff=%s\n",
		e.CheckedInAt.UTC().Format(time.RFC3339), e.BookingReference, e.PassengerName, e.FlightNumber, e.SeatNumber, e.SeatID, e.StaffID)
}
