package middleware // middleware provides the staff authentication and request guards

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airline-checkin/internal/utils"
)

// Context keys populated by JWTAuth.
const (
	ctxStaffID   = "staff_id"
	ctxRole      = "role"
	ctxStaffName = "staff_name"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the staff id, role and display name in the request context.  The
// staff id is also the lease holder id for every seat the caller locks.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxStaffID, claims.StaffID())
			c.Set(ctxRole, claims.Role)
			c.Set(ctxStaffName, claims.Name)
			return next(c)
		}
	}
}
