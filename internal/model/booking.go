package model

import "time"

// CheckInStatus tracks the one-way transition of a booking into CheckedIn.
type CheckInStatus string

const (
	NotCheckedIn CheckInStatus = "NOT_CHECKED_IN"
	CheckedIn    CheckInStatus = "CHECKED_IN"
)

// Booking is a passenger's reservation on one flight.  A CheckedIn booking
// always carries the SeatID of exactly one unavailable seat.
//
// Fields:
//  ID               – surrogate primary key.
//  BookingReference – PNR-style reference given to the passenger.
//  FlightNumber     – flight the booking belongs to.
//  PassengerName    – full name as printed on the boarding pass.
//  PassportNumber   – document number used by staff to search.
//  CheckInStatus    – NOT_CHECKED_IN or CHECKED_IN.
//  SeatID           – assigned seat (nil until check-in).
//  CheckedInAt      – when the check-in committed.
//  CheckedInBy      – staff member who performed it.
//  Version          – optimistic row stamp.
type Booking struct {
	ID               uint64        // bookings.id
	BookingReference string        // bookings.booking_reference
	FlightNumber     string        // bookings.flight_number
	PassengerName    string        // bookings.passenger_name
	PassportNumber   string        // bookings.passport_number
	CheckInStatus    CheckInStatus // bookings.check_in_status
	SeatID           *string       // bookings.seat_id (nullable)
	CheckedInAt      *time.Time    // bookings.checked_in_at (nullable)
	CheckedInBy      *string       // bookings.checked_in_by (nullable)
	Version          uint32        // bookings.version
}

// IsCheckedIn reports whether the booking already went through check-in.
func (b Booking) IsCheckedIn() bool { return b.CheckInStatus == CheckedIn }
