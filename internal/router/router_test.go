package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/airline-checkin/internal/middleware"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/realtime"
	"github.com/iliyamo/airline-checkin/internal/realtime/hub"
	"github.com/iliyamo/airline-checkin/internal/utils"
)

const testSecret = "router-test-secret"

func hubServer() *echo.Echo {
	e := echo.New()
	reg := realtime.NewRegistry(realtime.KindHub, realtime.Options{}, nil)
	RegisterCheckIn(e, CheckIn{
		Hub:       hub.NewHandler(reg, middleware.StaffID, 0, nil),
		JWTSecret: testSecret,
	})
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, 7, role, "Ada", 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestHubRoutes_RequireStaffRole(t *testing.T) {
	e := hubServer()

	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/hub/stream"},
		{http.MethodPut, "/v1/hub/c1/flights/MR101"},
		{http.MethodDelete, "/v1/hub/c1/flights/MR101"},
		{http.MethodPost, "/v1/hub/c1/heartbeat"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set(echo.HeaderAuthorization, bearer(t, "GUEST"))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestHubRoutes_AgentPassesRoleCheck(t *testing.T) {
	e := hubServer()

	for _, role := range []string{model.RoleAgent, model.RoleSupervisor} {
		req := httptest.NewRequest(http.MethodPost, "/v1/hub/c1/heartbeat", nil)
		req.Header.Set(echo.HeaderAuthorization, bearer(t, role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		// past the role check the handler looks the connection up
		assert.Equal(t, http.StatusNotFound, rec.Code, role)
	}
}

func TestHubRoutes_RequireToken(t *testing.T) {
	e := hubServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/hub/stream", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
