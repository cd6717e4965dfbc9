package hub

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/airline-checkin/internal/realtime"
)

func holderFromHeader(c echo.Context) string { return c.Request().Header.Get("X-Staff") }

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && ev.name != "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func setup(t *testing.T) (*httptest.Server, *realtime.Registry, *realtime.Broadcaster) {
	t.Helper()
	reg := realtime.NewRegistry(realtime.KindHub, realtime.Options{SendTimeout: time.Second}, nil)
	b := realtime.NewBroadcaster(nil, reg)
	h := NewHandler(reg, holderFromHeader, time.Hour, nil)
	e := echo.New()
	e.GET("/v1/hub/stream", h.Stream)
	e.PUT("/v1/hub/:conn/flights/:flight", h.Join)
	e.DELETE("/v1/hub/:conn/flights/:flight", h.Leave)
	e.POST("/v1/hub/:conn/heartbeat", h.Heartbeat)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		b.Close()
		srv.Close()
	})
	return srv, reg, b
}

func open(t *testing.T, srv *httptest.Server, reg *realtime.Registry, holder, flights string) (*bufio.Reader, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/hub/stream?flights="+flights, nil)
	require.NoError(t, err)
	req.Header.Set("X-Staff", holder)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	hello := readEvent(t, r)
	require.Equal(t, "hello", hello.name)
	var body struct {
		ConnID string `json:"conn_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(hello.data), &body))
	require.NotEmpty(t, body.ConnID)
	require.Eventually(t, func() bool { _, ok := reg.Get(body.ConnID); return ok }, time.Second, time.Millisecond)
	return r, body.ConnID
}

func call(t *testing.T, srv *httptest.Server, method, path, holder string) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Staff", holder)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestHub_GroupedDelivery(t *testing.T) {
	srv, reg, b := setup(t)
	r, connID := open(t, srv, reg, "staff1", "")

	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodPut, "/v1/hub/"+connID+"/flights/mr101", "staff1"))

	b.Publish(realtime.NewSeatLocked("X01A", "MR102", "staff2", time.Now()))
	b.Publish(realtime.NewSeatLocked("S12A", "MR101", "staff2", time.Now()))

	ev := readEvent(t, r)
	assert.Equal(t, "SeatLocked", ev.name)
	var got realtime.Event
	require.NoError(t, json.Unmarshal([]byte(ev.data), &got))
	assert.Equal(t, "S12A", got.SeatID)
	assert.Equal(t, "MR101", got.FlightNumber)
}

func TestHub_ConnectionEndpointsAreOwned(t *testing.T) {
	srv, reg, _ := setup(t)
	_, connID := open(t, srv, reg, "staff1", "MR101")

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodPost, "/v1/hub/"+connID+"/heartbeat", "staff1"))
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodPost, "/v1/hub/"+connID+"/heartbeat", "staff2"))
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodPut, "/v1/hub/"+connID+"/flights/MR102", "staff2"))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/v1/hub/nope/heartbeat", "staff1"))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodDelete, "/v1/hub/"+connID+"/flights/MR101", "staff1"))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	srv, reg, _ := setup(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/hub/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-Staff", "staff1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readEvent(t, bufio.NewReader(resp.Body))
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)

	resp.Body.Close()
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
