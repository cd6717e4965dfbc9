package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/airline-checkin/internal/database"
	"github.com/iliyamo/airline-checkin/internal/model"
)

// CheckInStore runs the seat assignment transaction.  It is the only
// writer of seats.is_available and bookings.check_in_status.
type CheckInStore struct {
	db database.Beginner
}

// NewCheckInStore returns a store using db for SERIALIZABLE transactions.
func NewCheckInStore(db database.Beginner) *CheckInStore { return &CheckInStore{db: db} }

// InTx runs fn inside a SERIALIZABLE transaction, committing only when fn
// returns nil.
func (s *CheckInStore) InTx(ctx context.Context, fn func(tx *CheckInTx) error) error {
	return database.InSerializableTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&CheckInTx{tx: tx})
	})
}

// CheckInTx is the set of reads and writes the assignment needs, bound to
// one open transaction.  Rows read with Lock* are held FOR UPDATE until the
// transaction ends.
type CheckInTx struct {
	tx *sql.Tx
}

// LockSeat reads a seat and locks its row.
func (t *CheckInTx) LockSeat(ctx context.Context, seatID string) (model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ? FOR UPDATE`
	s, err := scanSeat(t.tx.QueryRowContext(ctx, q, seatID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrSeatNotFound
	}
	return s, err
}

// LockBooking reads a booking by reference and locks its row.
func (t *CheckInTx) LockBooking(ctx context.Context, ref string) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = ? FOR UPDATE`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// Flight reads a flight inside the transaction.
func (t *CheckInTx) Flight(ctx context.Context, flight string) (model.Flight, error) {
	const q = `SELECT ` + flightColumns + ` FROM flights WHERE flight_number = ?`
	f, err := scanFlight(t.tx.QueryRowContext(ctx, q, flight))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Flight{}, ErrFlightNotFound
	}
	return f, err
}

// SeatOccupant returns the name of the passenger checked into seatID, or
// an empty string when nobody is.
func (t *CheckInTx) SeatOccupant(ctx context.Context, seatID string) (string, error) {
	const q = `SELECT passenger_name FROM bookings WHERE seat_id = ? AND check_in_status = 'CHECKED_IN' LIMIT 1`
	var name string
	err := t.tx.QueryRowContext(ctx, q, seatID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// MarkSeatTaken flips the seat to unavailable if it is still available at
// the version that was read.  ErrStaleVersion means another writer got
// there first.
func (t *CheckInTx) MarkSeatTaken(ctx context.Context, seat model.Seat) error {
	const q = `UPDATE seats SET is_available = 0, version = version + 1
	           WHERE id = ? AND version = ? AND is_available = 1`
	res, err := t.tx.ExecContext(ctx, q, seat.ID, seat.Version)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// CompleteCheckIn records the check-in on the booking if it is still not
// checked in at the version that was read.
func (t *CheckInTx) CompleteCheckIn(ctx context.Context, booking model.Booking, seatID, staffID string, at time.Time) error {
	const q = `UPDATE bookings
	           SET check_in_status = 'CHECKED_IN', seat_id = ?, checked_in_at = ?, checked_in_by = ?, version = version + 1
	           WHERE id = ? AND version = ? AND check_in_status = 'NOT_CHECKED_IN'`
	res, err := t.tx.ExecContext(ctx, q, seatID, dbTime(at), staffID, booking.ID, booking.Version)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrStaleVersion
	}
	return nil
}
