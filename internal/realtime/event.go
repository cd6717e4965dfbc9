// Package realtime pushes seat and flight events to every connected staff
// terminal.  Connections of each transport kind live in their own Registry;
// the Broadcaster resolves interested connections across all registries and
// delivers through the Transport interface, so it never knows which wire
// protocol sits underneath.
package realtime

import "time"

// Kind names a broadcast event.
type Kind string

const (
	SeatLocked          Kind = "SeatLocked"
	SeatUnlocked        Kind = "SeatUnlocked"
	SeatAssigned        Kind = "SeatAssigned"
	FlightStatusChanged Kind = "FlightStatusChanged"
)

// Unlock reasons carried in SeatUnlocked events.
const (
	ReasonReleased     = "released"
	ReasonExpired      = "expired"
	ReasonDisconnected = "disconnected"
)

// Critical reports whether failed deliveries of this kind are retried.
// Lock chatter is best-effort; outcomes and flight-wide status are not.
func (k Kind) Critical() bool {
	return k == SeatAssigned || k == FlightStatusChanged
}

// FlightScoped reports whether only subscribers of the event's flight
// receive it.  FlightStatusChanged goes to every connection.
func (k Kind) FlightScoped() bool {
	return k != FlightStatusChanged
}

// Event is the payload pushed to clients.  Transports encode it with
// whatever wire format they speak; the field set is the contract.
type Event struct {
	Kind          Kind      `json:"kind" cbor:"kind"`
	SeatID        string    `json:"seat_id,omitempty" cbor:"seat_id,omitempty"`
	FlightNumber  string    `json:"flight_number" cbor:"flight_number"`
	Holder        string    `json:"holder,omitempty" cbor:"holder,omitempty"`
	PassengerName string    `json:"passenger_name,omitempty" cbor:"passenger_name,omitempty"`
	SeatNumber    string    `json:"seat_number,omitempty" cbor:"seat_number,omitempty"`
	Status        string    `json:"status,omitempty" cbor:"status,omitempty"`
	Reason        string    `json:"reason,omitempty" cbor:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp" cbor:"timestamp"`

	// Attempt is the delivery attempt number, starting at 1.
	Attempt int `json:"attempt,omitempty" cbor:"attempt,omitempty"`
}

// Publisher accepts events for fan-out.  Publish never blocks on network
// I/O and never reports delivery failures to the caller.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

// NewSeatLocked builds a SeatLocked event.
func NewSeatLocked(seatID, flight, holder string, at time.Time) Event {
	return Event{Kind: SeatLocked, SeatID: seatID, FlightNumber: flight, Holder: holder, Timestamp: at.UTC()}
}

// NewSeatUnlocked builds a SeatUnlocked event with the given reason.
func NewSeatUnlocked(seatID, flight, holder, reason string, at time.Time) Event {
	return Event{Kind: SeatUnlocked, SeatID: seatID, FlightNumber: flight, Holder: holder, Reason: reason, Timestamp: at.UTC()}
}

// NewSeatAssigned builds a SeatAssigned event.
func NewSeatAssigned(seatID, seatNumber, flight, passenger, staff string, at time.Time) Event {
	return Event{
		Kind:          SeatAssigned,
		SeatID:        seatID,
		SeatNumber:    seatNumber,
		FlightNumber:  flight,
		PassengerName: passenger,
		Holder:        staff,
		Timestamp:     at.UTC(),
	}
}

// NewFlightStatusChanged builds a FlightStatusChanged event.
func NewFlightStatusChanged(flight, status string, at time.Time) Event {
	return Event{Kind: FlightStatusChanged, FlightNumber: flight, Status: status, Timestamp: at.UTC()}
}
