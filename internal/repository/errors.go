// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// check-in engine and the handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers should translate this into an HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrStaleVersion is returned by optimistic updates whose version stamp no
// longer matches the row: another writer committed first.
var ErrStaleVersion = errors.New("stale row version")

// ErrFlightNotFound, ErrSeatNotFound and ErrBookingNotFound are returned
// when a lookup yields no rows.
var (
	ErrFlightNotFound  = errors.New("flight not found")
	ErrSeatNotFound    = errors.New("seat not found")
	ErrBookingNotFound = errors.New("booking not found")
)
