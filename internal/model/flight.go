package model

import "time"

// FlightStatus is the operational state of a flight.  Only flights that are
// not Departed or Cancelled accept check-ins.
type FlightStatus string

const (
	FlightScheduled FlightStatus = "SCHEDULED"
	FlightCheckIn   FlightStatus = "CHECK_IN_OPEN"
	FlightBoarding  FlightStatus = "BOARDING"
	FlightDelayed   FlightStatus = "DELAYED"
	FlightDeparted  FlightStatus = "DEPARTED"
	FlightCancelled FlightStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s FlightStatus) Valid() bool {
	switch s {
	case FlightScheduled, FlightCheckIn, FlightBoarding, FlightDelayed, FlightDeparted, FlightCancelled:
		return true
	}
	return false
}

// AcceptsCheckIn reports whether passengers can still be checked in.
func (s FlightStatus) AcceptsCheckIn() bool {
	return s.Valid() && s != FlightDeparted && s != FlightCancelled
}

// Flight is a single scheduled departure.  Seats and bookings reference a
// flight by FlightNumber only.
//
// Fields:
//  FlightNumber  – natural key, e.g. MR101.
//  Origin        – IATA code of the departure airport.
//  Destination   – IATA code of the arrival airport.
//  DepartureTime – scheduled departure (UTC).
//  Status        – operational status.
//  Version       – row stamp bumped on every status change.
type Flight struct {
	FlightNumber  string       // flights.flight_number
	Origin        string       // flights.origin
	Destination   string       // flights.destination
	DepartureTime time.Time    // flights.departure_time
	Status        FlightStatus // flights.status
	Version       uint32       // flights.version
	UpdatedAt     time.Time    // flights.updated_at
}
