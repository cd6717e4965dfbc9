// Package checkin implements seat assignment: the one place a seat flips
// to unavailable and a booking to checked in.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/airline-checkin/internal/database"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/realtime"
	"github.com/iliyamo/airline-checkin/internal/repository"
	"github.com/iliyamo/airline-checkin/internal/seatgate"
)

// Locks is the part of the lease table the engine consults.
type Locks interface {
	HolderOf(seatID string) (string, bool)
	Consume(seatID string) bool
	Now() time.Time
}

// Gate serializes work per seat.
type Gate interface {
	WithSeatLock(ctx context.Context, seatID string, fn func(ctx context.Context) error) error
}

// Engine runs assignments.  It is safe for concurrent use.
type Engine struct {
	store  Store
	locks  Locks
	gate   Gate
	events realtime.Publisher
	logger *slog.Logger
}

// NewEngine wires an Engine.  A nil publisher discards events and a nil
// logger uses slog.Default().
func NewEngine(store Store, locks Locks, gate Gate, events realtime.Publisher, logger *slog.Logger) *Engine {
	if events == nil {
		events = realtime.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, locks: locks, gate: gate, events: events, logger: logger}
}

// Assign checks the booking in to seatID on behalf of staffID.
//
// The whole attempt runs inside the seat's gate and one serializable
// transaction.  A lease held by anyone other than staffID, an unavailable
// seat, a booking for another flight, an already checked-in booking or a
// departed/cancelled flight end the attempt with no writes.  On commit the
// lease is consumed and SeatAssigned published before the gate opens, so
// the next caller for the seat observes the assignment.  A lost race at
// the storage level is reported as Conflict; the engine never retries.
func (e *Engine) Assign(ctx context.Context, seatID, bookingRef, staffID string) Result {
	seatID = model.CanonicalSeatID(seatID)
	bookingRef = strings.ToUpper(strings.TrimSpace(bookingRef))
	if seatID == "" || bookingRef == "" {
		return Result{Outcome: NotFound, Reason: "seat id and booking reference are required"}
	}

	var out Result
	err := e.gate.WithSeatLock(ctx, seatID, func(ctx context.Context) error {
		if holder, ok := e.locks.HolderOf(seatID); ok && holder != staffID {
			return reject(Conflict, fmt.Sprintf("seat %s is locked by another agent", seatID))
		}

		var res Result
		err := e.store.InTx(ctx, func(tx Tx) error {
			seat, err := tx.LockSeat(ctx, seatID)
			if errors.Is(err, repository.ErrSeatNotFound) {
				return reject(NotFound, fmt.Sprintf("seat %s not found", seatID))
			}
			if err != nil {
				return err
			}
			if !seat.IsAvailable {
				occupant, err := tx.SeatOccupant(ctx, seatID)
				if err != nil {
					return err
				}
				if occupant != "" {
					return reject(Conflict, fmt.Sprintf("seat %s is already taken by %s", seat.SeatNumber, occupant))
				}
				return reject(Conflict, fmt.Sprintf("seat %s is already taken", seat.SeatNumber))
			}

			booking, err := tx.LockBooking(ctx, bookingRef)
			if errors.Is(err, repository.ErrBookingNotFound) {
				return reject(NotFound, fmt.Sprintf("booking %s not found", bookingRef))
			}
			if err != nil {
				return err
			}
			if booking.FlightNumber != seat.FlightNumber {
				return reject(Conflict, fmt.Sprintf("booking %s is for flight %s, seat %s is on flight %s",
					booking.BookingReference, booking.FlightNumber, seat.SeatNumber, seat.FlightNumber))
			}
			if booking.IsCheckedIn() {
				return reject(Conflict, fmt.Sprintf("%s is already checked in", booking.PassengerName))
			}

			flight, err := tx.Flight(ctx, seat.FlightNumber)
			if errors.Is(err, repository.ErrFlightNotFound) {
				return reject(NotFound, fmt.Sprintf("flight %s not found", seat.FlightNumber))
			}
			if err != nil {
				return err
			}
			if !flight.Status.AcceptsCheckIn() {
				return reject(Conflict, fmt.Sprintf("flight %s is %s", flight.FlightNumber, flight.Status))
			}

			at := e.locks.Now().UTC()
			if err := tx.MarkSeatTaken(ctx, seat); err != nil {
				return err
			}
			if err := tx.CompleteCheckIn(ctx, booking, seat.ID, staffID, at); err != nil {
				return err
			}
			res = Result{
				Outcome:          Success,
				SeatID:           seat.ID,
				SeatNumber:       seat.SeatNumber,
				FlightNumber:     seat.FlightNumber,
				BookingReference: booking.BookingReference,
				PassengerName:    booking.PassengerName,
				CheckInTime:      at,
			}
			return nil
		})
		if err != nil {
			return err
		}

		e.locks.Consume(res.SeatID)
		e.events.Publish(realtime.NewSeatAssigned(res.SeatID, res.SeatNumber, res.FlightNumber, res.PassengerName, staffID, res.CheckInTime))
		out = res
		return nil
	})
	if err == nil {
		e.logger.Info("seat assigned",
			"seat_id", out.SeatID, "flight", out.FlightNumber, "booking", out.BookingReference, "staff", staffID)
		return out
	}
	return e.classify(err, seatID, bookingRef, staffID)
}

func (e *Engine) classify(err error, seatID, bookingRef, staffID string) Result {
	var rej *rejection
	switch {
	case errors.As(err, &rej):
		e.logger.Info("assignment rejected",
			"seat_id", seatID, "booking", bookingRef, "staff", staffID, "outcome", rej.res.Outcome, "reason", rej.res.Reason)
		return rej.res
	case errors.Is(err, seatgate.ErrTimeout), errors.Is(err, context.DeadlineExceeded), database.IsLockWaitTimeout(err):
		e.logger.Warn("assignment timed out", "seat_id", seatID, "booking", bookingRef, "error", err)
		return Result{Outcome: Timeout, Reason: "seat is busy, try again"}
	case errors.Is(err, repository.ErrStaleVersion), database.IsConcurrencyConflict(err):
		e.logger.Info("assignment lost a concurrent race", "seat_id", seatID, "booking", bookingRef, "error", err)
		return Result{Outcome: Conflict, Reason: fmt.Sprintf("seat %s or booking %s was changed by another check-in, refresh and retry", seatID, bookingRef)}
	default:
		e.logger.Error("assignment failed", "seat_id", seatID, "booking", bookingRef, "error", err)
		return Result{Outcome: Error, Reason: "internal error"}
	}
}
