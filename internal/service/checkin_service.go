// Package service is the facade request handlers and socket transports
// call.  It combines the lease table, the assignment engine, the
// repositories and the outbound notifications.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/airline-checkin/internal/checkin"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/queue"
	"github.com/iliyamo/airline-checkin/internal/realtime"
	"github.com/iliyamo/airline-checkin/internal/repository"
)

var (
	// ErrSeatTaken is returned when locking a seat that is already assigned.
	ErrSeatTaken = errors.New("seat is already assigned")
	// ErrSeatLocked is returned when another holder has a live lease.
	ErrSeatLocked = errors.New("seat is locked by another agent")
	// ErrInvalidStatus is returned for an unknown flight status.
	ErrInvalidStatus = errors.New("invalid flight status")
)

// SeatReader reads seats outside the assignment transaction.
type SeatReader interface {
	GetByID(ctx context.Context, seatID string) (model.Seat, error)
	ListByFlight(ctx context.Context, flight string) ([]repository.SeatWithOccupant, error)
}

// FlightStore reads and updates flights.
type FlightStore interface {
	GetByNumber(ctx context.Context, flight string) (model.Flight, error)
	UpdateStatus(ctx context.Context, flight string, status model.FlightStatus) (model.Flight, error)
}

// BookingSearcher finds bookings for staff.
type BookingSearcher interface {
	SearchByPassport(ctx context.Context, passport, flight string) ([]repository.BookingDetail, error)
}

// Assigner runs seat assignments.
type Assigner interface {
	Assign(ctx context.Context, seatID, bookingRef, staffID string) checkin.Result
}

// LeaseTable is the advisory lock layer.
type LeaseTable interface {
	TryAcquire(seatID, flight, holderID string, ttl time.Duration) bool
	Release(seatID, holderID string) bool
	Lease(seatID string) (model.SeatLease, bool)
	ForFlight(flight string) []model.SeatLease
	IsAssigned(seatID string) bool
	Now() time.Time
}

// Deps are the collaborators of CheckInService.
type Deps struct {
	Seats     SeatReader
	Flights   FlightStore
	Bookings  BookingSearcher
	Engine    Assigner
	Leases    LeaseTable
	Events    realtime.Publisher
	Publisher CheckInPublisher // optional
	LeaseTTL  time.Duration
	Logger    *slog.Logger
}

// CheckInService implements the staff operations.
type CheckInService struct {
	d  Deps
	wg sync.WaitGroup
}

// NewCheckInService returns a service over d.
func NewCheckInService(d Deps) *CheckInService {
	if d.Events == nil {
		d.Events = realtime.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.LeaseTTL <= 0 {
		d.LeaseTTL = 5 * time.Minute
	}
	return &CheckInService{d: d}
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// SearchBooking finds the bookings of a passport on a flight.
func (s *CheckInService) SearchBooking(ctx context.Context, passport, flight string) ([]repository.BookingDetail, error) {
	return s.d.Bookings.SearchByPassport(ctx, passport, flight)
}

// AcquireSeatLock leases seatID to holderID.  The seat's flight comes from
// the store, so clients cannot file a lease under the wrong flight.
// Renewing one's own lease extends it.
func (s *CheckInService) AcquireSeatLock(ctx context.Context, seatID, holderID string) (model.SeatLease, error) {
	seat, err := s.d.Seats.GetByID(ctx, model.CanonicalSeatID(seatID))
	if err != nil {
		return model.SeatLease{}, err
	}
	if !seat.IsAvailable || s.d.Leases.IsAssigned(seat.ID) {
		return model.SeatLease{}, ErrSeatTaken
	}
	if !s.d.Leases.TryAcquire(seat.ID, seat.FlightNumber, holderID, s.d.LeaseTTL) {
		if s.d.Leases.IsAssigned(seat.ID) {
			return model.SeatLease{}, ErrSeatTaken
		}
		return model.SeatLease{}, ErrSeatLocked
	}
	lease, ok := s.d.Leases.Lease(seat.ID)
	if !ok {
		// expired or consumed between the two calls
		return model.SeatLease{}, ErrSeatLocked
	}
	return lease, nil
}

// ReleaseSeatLock drops holderID's lease.  Releasing a lease one does not
// hold is a no-op reported as false.
func (s *CheckInService) ReleaseSeatLock(_ context.Context, seatID, holderID string) bool {
	return s.d.Leases.Release(model.CanonicalSeatID(seatID), holderID)
}

// AssignSeat checks a booking in to a seat.  On success a
// CheckInCompletedEvent is published in the background.
func (s *CheckInService) AssignSeat(ctx context.Context, bookingRef, seatID, staffID string) checkin.Result {
	res := s.d.Engine.Assign(ctx, model.CanonicalSeatID(seatID), normalize(bookingRef), staffID)
	if res.OK() && s.d.Publisher != nil {
		ev := queue.CheckInCompletedEvent{
			BookingReference: res.BookingReference,
			PassengerName:    res.PassengerName,
			FlightNumber:     res.FlightNumber,
			SeatID:           res.SeatID,
			SeatNumber:       res.SeatNumber,
			StaffID:          staffID,
			CheckedInAt:      res.CheckInTime,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.d.Publisher.PublishCheckInCompleted(ctx, ev); err != nil {
				s.d.Logger.Warn("check-in completed message not sent", "booking", ev.BookingReference, "error", err)
			}
		}()
	}
	return res
}

// ChangeFlightStatus updates a flight and tells every terminal.
func (s *CheckInService) ChangeFlightStatus(ctx context.Context, flight string, status model.FlightStatus) (model.Flight, error) {
	if !status.Valid() {
		return model.Flight{}, ErrInvalidStatus
	}
	f, err := s.d.Flights.UpdateStatus(ctx, normalize(flight), status)
	if err != nil {
		return model.Flight{}, err
	}
	s.d.Events.Publish(realtime.NewFlightStatusChanged(f.FlightNumber, string(f.Status), s.d.Leases.Now()))
	s.d.Logger.Info("flight status changed", "flight", f.FlightNumber, "status", string(f.Status))
	return f, nil
}

// SeatView is one entry of a seat map.
type SeatView struct {
	SeatID        string          `json:"seat_id"`
	SeatNumber    string          `json:"seat_number"`
	CabinClass    string          `json:"cabin_class"`
	State         model.SeatState `json:"state"`
	Holder        string          `json:"holder,omitempty"`
	LockedUntil   *time.Time      `json:"locked_until,omitempty"`
	PassengerName string          `json:"passenger_name,omitempty"`
}

// SeatMap returns every seat of a flight with its current state: ASSIGNED
// per the store, LOCKED per a live lease, FREE otherwise.
func (s *CheckInService) SeatMap(ctx context.Context, flight string) ([]SeatView, error) {
	flight = normalize(flight)
	if _, err := s.d.Flights.GetByNumber(ctx, flight); err != nil {
		return nil, err
	}
	seats, err := s.d.Seats.ListByFlight(ctx, flight)
	if err != nil {
		return nil, err
	}
	leases := make(map[string]model.SeatLease)
	for _, l := range s.d.Leases.ForFlight(flight) {
		leases[l.SeatID] = l
	}
	out := make([]SeatView, 0, len(seats))
	for _, st := range seats {
		v := SeatView{SeatID: st.ID, SeatNumber: st.SeatNumber, CabinClass: st.CabinClass, State: model.SeatFree}
		if l, ok := leases[st.ID]; ok && st.IsAvailable {
			exp := l.ExpiresAt
			v.State, v.Holder, v.LockedUntil = model.SeatLocked, l.HolderID, &exp
		}
		if !st.IsAvailable {
			v.State, v.PassengerName = model.SeatAssigned, st.PassengerName
		}
		out = append(out, v)
	}
	return out, nil
}

// FlightInfo returns one flight.
func (s *CheckInService) FlightInfo(ctx context.Context, flight string) (model.Flight, error) {
	return s.d.Flights.GetByNumber(ctx, normalize(flight))
}

// Wait blocks until background publishes finish.
func (s *CheckInService) Wait() { s.wg.Wait() }
