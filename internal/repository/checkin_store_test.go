package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/airline-checkin/internal/model"
)

func newMock(t *testing.T) (*CheckInStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCheckInStore(db), mock
}

func TestCheckInTx_AssignsSeatAndBooking(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ? FOR UPDATE")).
		WithArgs("MR101-12A").
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_number", "seat_number", "cabin_class", "is_available", "version"}).
			AddRow("MR101-12A", "MR101", "12A", "ECONOMY", true, 3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE booking_reference = ? FOR UPDATE")).
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_reference", "flight_number", "passenger_name", "passport_number",
			"check_in_status", "seat_id", "checked_in_at", "checked_in_by", "version"}).
			AddRow(7, "ABC123", "MR101", "Ada Lovelace", "P123", "NOT_CHECKED_IN", nil, nil, nil, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET is_available = 0")).
		WithArgs("MR101-12A", uint32(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs("MR101-12A", "2026-03-01 09:30:00", "staff1", uint64(7), uint32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx *CheckInTx) error {
		ctx := context.Background()
		seat, err := tx.LockSeat(ctx, "MR101-12A")
		if err != nil {
			return err
		}
		booking, err := tx.LockBooking(ctx, "ABC123")
		if err != nil {
			return err
		}
		assert.Equal(t, model.NotCheckedIn, booking.CheckInStatus)
		assert.Nil(t, booking.SeatID)
		if err := tx.MarkSeatTaken(ctx, seat); err != nil {
			return err
		}
		return tx.CompleteCheckIn(ctx, booking, seat.ID, "staff1", at)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTx_StaleSeatVersionRollsBack(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET is_available = 0")).
		WithArgs("MR101-12A", uint32(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx *CheckInTx) error {
		return tx.MarkSeatTaken(context.Background(), model.Seat{ID: "MR101-12A", Version: 3})
	})
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTx_NotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE id = ? FOR UPDATE")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx *CheckInTx) error {
		_, err := tx.LockSeat(context.Background(), "nope")
		return err
	})
	assert.ErrorIs(t, err, ErrSeatNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTx_SeatOccupant(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT passenger_name FROM bookings")).
		WithArgs("MR101-12A").
		WillReturnRows(sqlmock.NewRows([]string{"passenger_name"}).AddRow("Grace Hopper"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT passenger_name FROM bookings")).
		WithArgs("MR101-12B").
		WillReturnRows(sqlmock.NewRows([]string{"passenger_name"}))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx *CheckInTx) error {
		name, err := tx.SeatOccupant(context.Background(), "MR101-12A")
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", name)
		name, err = tx.SeatOccupant(context.Background(), "MR101-12B")
		require.NoError(t, err)
		assert.Empty(t, name)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_SearchByPassportNormalizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dep := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.passport_number = ? AND b.flight_number = ?")).
		WithArgs("P123", "MR101").
		WillReturnRows(sqlmock.NewRows([]string{"booking_reference", "passenger_name", "passport_number", "flight_number",
			"origin", "destination", "departure_time", "status", "check_in_status", "seat_id", "seat_number", "checked_in_at"}).
			AddRow("ABC123", "Ada Lovelace", "P123", "MR101", "LHR", "JFK", dep, "CHECK_IN_OPEN", "NOT_CHECKED_IN", nil, nil, nil))

	out, err := NewBookingRepo(db).SearchByPassport(context.Background(), " p123 ", "mr101")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ABC123", out[0].BookingReference)
	assert.Nil(t, out[0].SeatNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlightRepo_UpdateStatusUnknownFlight(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights WHERE flight_number = ? FOR UPDATE")).
		WithArgs("ZZ999").
		WillReturnRows(sqlmock.NewRows([]string{"flight_number"}))
	mock.ExpectRollback()

	_, err = NewFlightRepo(db).UpdateStatus(context.Background(), "ZZ999", model.FlightDelayed)
	assert.ErrorIs(t, err, ErrFlightNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
