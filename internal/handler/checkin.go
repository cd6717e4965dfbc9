package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airline-checkin/internal/checkin"
	"github.com/iliyamo/airline-checkin/internal/middleware"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/repository"
	"github.com/iliyamo/airline-checkin/internal/service"
)

// CheckInAPI is the part of service.CheckInService the handlers use.
type CheckInAPI interface {
	SearchBooking(ctx context.Context, passport, flight string) ([]repository.BookingDetail, error)
	AcquireSeatLock(ctx context.Context, seatID, holderID string) (model.SeatLease, error)
	ReleaseSeatLock(ctx context.Context, seatID, holderID string) bool
	AssignSeat(ctx context.Context, bookingRef, seatID, staffID string) checkin.Result
	ChangeFlightStatus(ctx context.Context, flight string, status model.FlightStatus) (model.Flight, error)
	SeatMap(ctx context.Context, flight string) ([]service.SeatView, error)
	FlightInfo(ctx context.Context, flight string) (model.Flight, error)
}

// CheckInHandler serves the staff check-in endpoints.
type CheckInHandler struct {
	Svc CheckInAPI
}

func NewCheckInHandler(svc CheckInAPI) *CheckInHandler {
	if svc == nil {
		panic("nil service passed to NewCheckInHandler")
	}
	return &CheckInHandler{Svc: svc}
}

type assignReq struct {
	BookingReference string `json:"booking_reference" validate:"required,max=16"`
	SeatID           string `json:"seat_id" validate:"required,max=32"`
}

// retryAfterSeconds is sent with 503 when the seat gate timed out.
const retryAfterSeconds = "1"

// SearchBooking handles GET /v1/bookings/search?passport=&flight=.
func (h *CheckInHandler) SearchBooking(c echo.Context) error {
	passport := strings.TrimSpace(c.QueryParam("passport"))
	flight := strings.TrimSpace(c.QueryParam("flight"))
	if passport == "" || flight == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passport and flight are required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Svc.SearchBooking(ctx, passport, flight)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	if items == nil {
		items = []repository.BookingDetail{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// LockSeat handles POST /v1/seats/:seat/lock.  The holder is the
// authenticated staff member.
func (h *CheckInHandler) LockSeat(c echo.Context) error {
	seatID := strings.TrimSpace(c.Param("seat"))
	l, err := h.Svc.AcquireSeatLock(c.Request().Context(), seatID, middleware.StaffID(c))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, l)
	case errors.Is(err, repository.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	case errors.Is(err, service.ErrSeatTaken), errors.Is(err, service.ErrSeatLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lock failed"})
	}
}

// UnlockSeat handles DELETE /v1/seats/:seat/lock.  Releasing a seat one
// does not hold is not an error.
func (h *CheckInHandler) UnlockSeat(c echo.Context) error {
	seatID := strings.TrimSpace(c.Param("seat"))
	released := h.Svc.ReleaseSeatLock(c.Request().Context(), seatID, middleware.StaffID(c))
	return c.JSON(http.StatusOK, echo.Map{"seat_id": seatID, "released": released})
}

// Assign handles POST /v1/checkins.
func (h *CheckInHandler) Assign(c echo.Context) error {
	var req assignReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res := h.Svc.AssignSeat(c.Request().Context(), req.BookingReference, strings.TrimSpace(req.SeatID), middleware.StaffID(c))
	return writeResult(c, res)
}

func writeResult(c echo.Context, res checkin.Result) error {
	switch res.Outcome {
	case checkin.Success:
		return c.JSON(http.StatusOK, res)
	case checkin.NotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": res.Reason, "outcome": res.Outcome})
	case checkin.Conflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": res.Reason, "outcome": res.Outcome})
	case checkin.Timeout:
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": res.Reason, "outcome": res.Outcome})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": res.Reason, "outcome": checkin.Error})
	}
}
