// Package router registers the HTTP routes of the check-in service.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airline-checkin/internal/handler"
	"github.com/iliyamo/airline-checkin/internal/middleware"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/realtime/hub"
	"github.com/iliyamo/airline-checkin/internal/realtime/wsock"
)

// RegisterRoutes registers unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the staff auth endpoints.  Login and refresh are
// public; everything else needs a valid access token, and creating staff
// accounts needs a supervisor.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAgent, model.RoleSupervisor))
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", a.Me)
	auth.POST("/staff", a.CreateStaff, middleware.RequireRole(model.RoleSupervisor))
}

// CheckIn collects what RegisterCheckIn needs.
type CheckIn struct {
	Handler   *handler.CheckInHandler
	Hub       *hub.Handler
	Socket    *wsock.Handler
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterCheckIn registers the staff check-in API, the realtime endpoints
// and the cached public flight lookup.
func RegisterCheckIn(e *echo.Echo, r CheckIn) {
	h := r.Handler
	if r.Cache != nil {
		e.GET("/v1/flights/:flight", h.Flight, r.Cache)
	} else {
		e.GET("/v1/flights/:flight", h.Flight)
	}

	mw := []echo.MiddlewareFunc{middleware.JWTAuth(r.JWTSecret), middleware.RequireRole(model.RoleAgent, model.RoleSupervisor)}
	if r.RateLimit != nil {
		mw = append(mw, r.RateLimit)
	}
	staff := e.Group("/v1", mw...)
	staff.GET("/bookings/search", h.SearchBooking)
	staff.POST("/seats/:seat/lock", h.LockSeat)
	staff.DELETE("/seats/:seat/lock", h.UnlockSeat)
	staff.POST("/checkins", h.Assign)
	staff.GET("/flights/:flight/seats", h.SeatMap)
	staff.PUT("/flights/:flight/status", h.ChangeStatus, middleware.RequireRole(model.RoleSupervisor))

	if r.Hub != nil {
		hubs := e.Group("/v1/hub", middleware.JWTAuth(r.JWTSecret), middleware.RequireRole(model.RoleAgent, model.RoleSupervisor))
		hubs.GET("/stream", r.Hub.Stream)
		hubs.PUT("/:conn/flights/:flight", r.Hub.Join)
		hubs.DELETE("/:conn/flights/:flight", r.Hub.Leave)
		hubs.POST("/:conn/heartbeat", r.Hub.Heartbeat)
	}
	// the socket authenticates from its token query parameter
	if r.Socket != nil {
		e.GET("/v1/ws", r.Socket.Serve)
	}
}
