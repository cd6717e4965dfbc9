package model

import "strings"

// Seat is a physical seat on a flight.  IsAvailable flips from true to false
// exactly once, inside the check-in transaction that assigns it.  Version is
// the optimistic row stamp checked by that transaction.
type Seat struct {
	ID           string // seats.id, e.g. S12A
	FlightNumber string // seats.flight_number
	SeatNumber   string // seats.seat_number, e.g. 12A
	CabinClass   string // seats.cabin_class (ECONOMY, BUSINESS, FIRST)
	IsAvailable  bool   // seats.is_available
	Version      uint32 // seats.version
}

// CanonicalSeatID returns the stored form of a seat id.  Seat ids are upper
// case; the store compares them case-insensitively, so every in-memory key
// (leases, gates, tombstones) must go through this first.
func CanonicalSeatID(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

// SeatState is the merged view of a seat shown to staff terminals.
type SeatState string

const (
	SeatFree     SeatState = "FREE"
	SeatLocked   SeatState = "LOCKED"
	SeatAssigned SeatState = "ASSIGNED"
)
