package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/airline-checkin/internal/model"
)

// BookingRepo provides read access to bookings.  All check-in writes go
// through CheckInTx.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingDetail is the search result shown to staff: the booking plus the
// flight it belongs to and the assigned seat number, if any.
type BookingDetail struct {
	BookingReference string     `json:"booking_reference"`
	PassengerName    string     `json:"passenger_name"`
	PassportNumber   string     `json:"passport_number"`
	FlightNumber     string     `json:"flight_number"`
	Origin           string     `json:"origin"`
	Destination      string     `json:"destination"`
	DepartureTime    time.Time  `json:"departure_time"`
	FlightStatus     string     `json:"flight_status"`
	CheckInStatus    string     `json:"check_in_status"`
	SeatID           *string    `json:"seat_id,omitempty"`
	SeatNumber       *string    `json:"seat_number,omitempty"`
	CheckedInAt      *time.Time `json:"checked_in_at,omitempty"`
}

// GetByReference loads a booking by its reference.  ErrBookingNotFound is
// returned when it does not exist.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, strings.ToUpper(strings.TrimSpace(ref))))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// SearchByPassport returns the bookings matching a passport number on one
// flight.  Both inputs are normalized to upper case.  An empty slice is
// returned when nothing matches.
func (r *BookingRepo) SearchByPassport(ctx context.Context, passport, flight string) ([]BookingDetail, error) {
	const q = `SELECT b.booking_reference, b.passenger_name, b.passport_number, b.flight_number,
	                  f.origin, f.destination, f.departure_time, f.status,
	                  b.check_in_status, b.seat_id, s.seat_number, b.checked_in_at
	           FROM bookings b
	           JOIN flights f ON f.flight_number = b.flight_number
	           LEFT JOIN seats s ON s.id = b.seat_id
	           WHERE b.passport_number = ? AND b.flight_number = ?
	           ORDER BY b.booking_reference`
	rows, err := r.db.QueryContext(ctx, q,
		strings.ToUpper(strings.TrimSpace(passport)),
		strings.ToUpper(strings.TrimSpace(flight)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookingDetail, 0)
	for rows.Next() {
		var (
			d          BookingDetail
			seatID     sql.NullString
			seatNumber sql.NullString
			checkedAt  sql.NullTime
		)
		if err := rows.Scan(&d.BookingReference, &d.PassengerName, &d.PassportNumber, &d.FlightNumber,
			&d.Origin, &d.Destination, &d.DepartureTime, &d.FlightStatus,
			&d.CheckInStatus, &seatID, &seatNumber, &checkedAt); err != nil {
			return nil, err
		}
		d.DepartureTime = d.DepartureTime.UTC()
		if seatID.Valid {
			v := seatID.String
			d.SeatID = &v
		}
		if seatNumber.Valid {
			v := seatNumber.String
			d.SeatNumber = &v
		}
		if checkedAt.Valid {
			v := checkedAt.Time.UTC()
			d.CheckedInAt = &v
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
