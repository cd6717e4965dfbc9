package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/airline-checkin/internal/checkin"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/repository"
	"github.com/iliyamo/airline-checkin/internal/service"
)

type fakeAPI struct {
	search  func(passport, flight string) ([]repository.BookingDetail, error)
	lock    func(seatID, holder string) (model.SeatLease, error)
	release func(seatID, holder string) bool
	assign  func(ref, seatID, staff string) checkin.Result
	status  func(flight string, st model.FlightStatus) (model.Flight, error)
	seatMap func(flight string) ([]service.SeatView, error)
	flight  func(flight string) (model.Flight, error)
}

func (f *fakeAPI) SearchBooking(_ context.Context, p, fl string) ([]repository.BookingDetail, error) {
	return f.search(p, fl)
}
func (f *fakeAPI) AcquireSeatLock(_ context.Context, s, h string) (model.SeatLease, error) {
	return f.lock(s, h)
}
func (f *fakeAPI) ReleaseSeatLock(_ context.Context, s, h string) bool { return f.release(s, h) }
func (f *fakeAPI) AssignSeat(_ context.Context, r, s, st string) checkin.Result {
	return f.assign(r, s, st)
}
func (f *fakeAPI) ChangeFlightStatus(_ context.Context, fl string, st model.FlightStatus) (model.Flight, error) {
	return f.status(fl, st)
}
func (f *fakeAPI) SeatMap(_ context.Context, fl string) ([]service.SeatView, error) {
	return f.seatMap(fl)
}
func (f *fakeAPI) FlightInfo(_ context.Context, fl string) (model.Flight, error) { return f.flight(fl) }

// asStaff stands in for JWTAuth.
func asStaff(id string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("staff_id", id)
			return next(c)
		}
	}
}

func newEcho(api *fakeAPI) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	h := NewCheckInHandler(api)
	g := e.Group("/v1", asStaff("7"))
	g.GET("/bookings/search", h.SearchBooking)
	g.POST("/seats/:seat/lock", h.LockSeat)
	g.DELETE("/seats/:seat/lock", h.UnlockSeat)
	g.POST("/checkins", h.Assign)
	g.GET("/flights/:flight", h.Flight)
	g.GET("/flights/:flight/seats", h.SeatMap)
	g.PUT("/flights/:flight/status", h.ChangeStatus)
	return e
}

func call(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAssign_OutcomeStatusCodes(t *testing.T) {
	cases := []struct {
		outcome checkin.Outcome
		code    int
	}{
		{checkin.Success, http.StatusOK},
		{checkin.NotFound, http.StatusNotFound},
		{checkin.Conflict, http.StatusConflict},
		{checkin.Timeout, http.StatusServiceUnavailable},
		{checkin.Error, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			var gotStaff string
			e := newEcho(&fakeAPI{assign: func(ref, seat, staff string) checkin.Result {
				gotStaff = staff
				return checkin.Result{Outcome: tc.outcome, SeatID: seat, BookingReference: ref, Reason: "because"}
			}})
			rec := call(e, http.MethodPost, "/v1/checkins", `{"booking_reference":"ABC123","seat_id":"S12A"}`)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "7", gotStaff)
			if tc.outcome == checkin.Timeout {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
			if tc.outcome != checkin.Success {
				assert.Contains(t, rec.Body.String(), "because")
			}
		})
	}
}

func TestAssign_ValidatesBody(t *testing.T) {
	e := newEcho(&fakeAPI{assign: func(string, string, string) checkin.Result {
		t.Fatal("service must not be called")
		return checkin.Result{}
	}})
	rec := call(e, http.MethodPost, "/v1/checkins", `{"seat_id":"S12A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BookingReference")
}

func TestLockSeat(t *testing.T) {
	exp := time.Date(2026, 3, 1, 9, 35, 0, 0, time.UTC)
	api := &fakeAPI{lock: func(seat, holder string) (model.SeatLease, error) {
		switch seat {
		case "S12A":
			return model.SeatLease{SeatID: seat, FlightNumber: "MR101", HolderID: holder, ExpiresAt: exp}, nil
		case "S12B":
			return model.SeatLease{}, service.ErrSeatLocked
		case "S12C":
			return model.SeatLease{}, service.ErrSeatTaken
		}
		return model.SeatLease{}, repository.ErrSeatNotFound
	}}
	e := newEcho(api)

	rec := call(e, http.MethodPost, "/v1/seats/S12A/lock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"holder_id":"7"`)

	assert.Equal(t, http.StatusConflict, call(e, http.MethodPost, "/v1/seats/S12B/lock", "").Code)
	assert.Equal(t, http.StatusConflict, call(e, http.MethodPost, "/v1/seats/S12C/lock", "").Code)
	assert.Equal(t, http.StatusNotFound, call(e, http.MethodPost, "/v1/seats/NOPE/lock", "").Code)
}

func TestUnlockSeat_NotHolderIsNotAnError(t *testing.T) {
	e := newEcho(&fakeAPI{release: func(string, string) bool { return false }})
	rec := call(e, http.MethodDelete, "/v1/seats/S12A/lock", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seat_id":"S12A","released":false}`, rec.Body.String())
}

func TestSearchBooking(t *testing.T) {
	e := newEcho(&fakeAPI{search: func(p, f string) ([]repository.BookingDetail, error) {
		return nil, nil
	}})
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodGet, "/v1/bookings/search?passport=X1", "").Code)

	rec := call(e, http.MethodGet, "/v1/bookings/search?passport=X1&flight=MR101", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestFlightEndpoints(t *testing.T) {
	api := &fakeAPI{
		flight: func(fl string) (model.Flight, error) {
			if fl != "MR101" {
				return model.Flight{}, repository.ErrFlightNotFound
			}
			return model.Flight{FlightNumber: "MR101", Origin: "THR", Destination: "IST", Status: model.FlightCheckIn}, nil
		},
		seatMap: func(fl string) ([]service.SeatView, error) {
			return []service.SeatView{{SeatID: "S12A", SeatNumber: "12A", State: model.SeatLocked, Holder: "9"}}, nil
		},
		status: func(fl string, st model.FlightStatus) (model.Flight, error) {
			if !st.Valid() {
				return model.Flight{}, service.ErrInvalidStatus
			}
			return model.Flight{FlightNumber: fl, Status: st}, nil
		},
	}
	e := newEcho(api)

	rec := call(e, http.MethodGet, "/v1/flights/MR101", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CHECK_IN_OPEN"`)
	assert.Equal(t, http.StatusNotFound, call(e, http.MethodGet, "/v1/flights/ZZ1", "").Code)

	rec = call(e, http.MethodGet, "/v1/flights/MR101/seats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"LOCKED"`)

	rec = call(e, http.MethodPut, "/v1/flights/MR101/status", `{"status":"delayed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"DELAYED"`)

	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPut, "/v1/flights/MR101/status", `{"status":"LOST"}`).Code)
}
