package checkin

import (
	"context"
	"time"

	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/repository"
)

// Tx is the transactional view of the relational store used by Assign.
// Lock* reads hold their rows until the transaction ends; the two writes
// fail with repository.ErrStaleVersion when the row changed since it was
// read.
type Tx interface {
	LockSeat(ctx context.Context, seatID string) (model.Seat, error)
	LockBooking(ctx context.Context, ref string) (model.Booking, error)
	Flight(ctx context.Context, flight string) (model.Flight, error)
	SeatOccupant(ctx context.Context, seatID string) (string, error)
	MarkSeatTaken(ctx context.Context, seat model.Seat) error
	CompleteCheckIn(ctx context.Context, booking model.Booking, seatID, staffID string, at time.Time) error
}

// Store opens serializable transactions.  fn's error rolls the
// transaction back and is returned unchanged.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// SQLStore adapts the MySQL check-in store to Store.
func SQLStore(s *repository.CheckInStore) Store { return sqlStore{s} }

type sqlStore struct {
	s *repository.CheckInStore
}

func (a sqlStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return a.s.InTx(ctx, func(tx *repository.CheckInTx) error { return fn(tx) })
}
