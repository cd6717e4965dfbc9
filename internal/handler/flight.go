package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/repository"
	"github.com/iliyamo/airline-checkin/internal/service"
)

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type flightResp struct {
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	Status        string    `json:"status"`
}

func toFlightResp(f model.Flight) flightResp {
	return flightResp{
		FlightNumber:  f.FlightNumber,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.UTC(),
		Status:        string(f.Status),
	}
}

// Flight handles GET /v1/flights/:flight.
func (h *CheckInHandler) Flight(c echo.Context) error {
	f, err := h.Svc.FlightInfo(c.Request().Context(), c.Param("flight"))
	if err != nil {
		return flightError(c, err)
	}
	return c.JSON(http.StatusOK, toFlightResp(f))
}

// SeatMap handles GET /v1/flights/:flight/seats.
func (h *CheckInHandler) SeatMap(c echo.Context) error {
	seats, err := h.Svc.SeatMap(c.Request().Context(), c.Param("flight"))
	if err != nil {
		return flightError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"flight_number": strings.ToUpper(c.Param("flight")), "seats": seats})
}

// ChangeStatus handles PUT /v1/flights/:flight/status.  Supervisor only.
func (h *CheckInHandler) ChangeStatus(c echo.Context) error {
	var req statusReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	status := model.FlightStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	f, err := h.Svc.ChangeFlightStatus(c.Request().Context(), c.Param("flight"), status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return flightError(c, err)
	}
	return c.JSON(http.StatusOK, toFlightResp(f))
}

func flightError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrFlightNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
	case errors.Is(err, repository.ErrStaleVersion), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "flight was modified concurrently"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "flight lookup failed"})
	}
}
