package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/airline-checkin/internal/model"
)

// SeatRepo provides read access to seats outside the check-in
// transaction.  Seats are only ever written by CheckInTx.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// GetByID loads one seat.  ErrSeatNotFound is returned when it does not exist.
func (r *SeatRepo) GetByID(ctx context.Context, seatID string) (model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ?`
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, seatID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrSeatNotFound
	}
	return s, err
}

// SeatWithOccupant is a seat joined with the passenger checked into it.
type SeatWithOccupant struct {
	model.Seat
	PassengerName string // empty when the seat is free
}

// ListByFlight returns every seat of a flight ordered by seat number,
// together with the name of the passenger occupying it.
func (r *SeatRepo) ListByFlight(ctx context.Context, flight string) ([]SeatWithOccupant, error) {
	const q = `SELECT s.id, s.flight_number, s.seat_number, s.cabin_class, s.is_available, s.version,
	                  COALESCE(b.passenger_name, '')
	           FROM seats s
	           LEFT JOIN bookings b ON b.seat_id = s.id AND b.check_in_status = 'CHECKED_IN'
	           WHERE s.flight_number = ?
	           ORDER BY LENGTH(s.seat_number), s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, flight)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SeatWithOccupant, 0)
	for rows.Next() {
		var s SeatWithOccupant
		if err := rows.Scan(&s.ID, &s.FlightNumber, &s.SeatNumber, &s.CabinClass, &s.IsAvailable, &s.Version, &s.PassengerName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
