package repository

import (
	"database/sql"
	"time"

	"github.com/iliyamo/airline-checkin/internal/model"
)

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const seatColumns = `id, flight_number, seat_number, cabin_class, is_available, version`

func scanSeat(rs rowScanner) (model.Seat, error) {
	var s model.Seat
	err := rs.Scan(&s.ID, &s.FlightNumber, &s.SeatNumber, &s.CabinClass, &s.IsAvailable, &s.Version)
	return s, err
}

const bookingColumns = `id, booking_reference, flight_number, passenger_name, passport_number,
       check_in_status, seat_id, checked_in_at, checked_in_by, version`

func scanBooking(rs rowScanner) (model.Booking, error) {
	var (
		b         model.Booking
		status    string
		seatID    sql.NullString
		checkedAt sql.NullTime
		checkedBy sql.NullString
	)
	err := rs.Scan(&b.ID, &b.BookingReference, &b.FlightNumber, &b.PassengerName, &b.PassportNumber,
		&status, &seatID, &checkedAt, &checkedBy, &b.Version)
	if err != nil {
		return model.Booking{}, err
	}
	b.CheckInStatus = model.CheckInStatus(status)
	if seatID.Valid {
		v := seatID.String
		b.SeatID = &v
	}
	if checkedAt.Valid {
		v := checkedAt.Time.UTC()
		b.CheckedInAt = &v
	}
	if checkedBy.Valid {
		v := checkedBy.String
		b.CheckedInBy = &v
	}
	return b, nil
}

const flightColumns = `flight_number, origin, destination, departure_time, status, version, updated_at`

func scanFlight(rs rowScanner) (model.Flight, error) {
	var (
		f      model.Flight
		status string
	)
	err := rs.Scan(&f.FlightNumber, &f.Origin, &f.Destination, &f.DepartureTime, &status, &f.Version, &f.UpdatedAt)
	if err != nil {
		return model.Flight{}, err
	}
	f.Status = model.FlightStatus(status)
	f.DepartureTime = f.DepartureTime.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}

// dbTime formats t the way DATETIME columns are written.
func dbTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
