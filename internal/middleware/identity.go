package middleware

// identity.go exposes the values JWTAuth stores in the Echo context to
// handlers and to the other middleware in this package.

import "github.com/labstack/echo/v4"

// StaffID returns the authenticated staff id, or "" for anonymous requests.
func StaffID(c echo.Context) string {
	s, _ := c.Get(ctxStaffID).(string)
	return s
}

// StaffRole returns the authenticated role, or "".
func StaffRole(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// StaffName returns the display name carried in the token.
func StaffName(c echo.Context) string {
	s, _ := c.Get(ctxStaffName).(string)
	return s
}

// rateSubject is the identity used in rate-limit keys.
func rateSubject(c echo.Context) string {
	if id := StaffID(c); id != "" {
		return id
	}
	return "anon"
}
