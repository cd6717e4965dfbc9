package model

import "time"

// SeatLease is an advisory, time-bounded claim on a seat held by one staff
// member while a check-in form is being filled in.  It is never persisted;
// the relational store stays the source of truth for assignments.
type SeatLease struct {
	SeatID       string    `json:"seat_id"`
	FlightNumber string    `json:"flight_number"`
	HolderID     string    `json:"holder_id"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the lease is past its expiry at now.
func (l SeatLease) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }
