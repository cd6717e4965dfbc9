// Package hub is the group push transport: a server-sent event stream per
// terminal, grouped by flight.  Group membership and heartbeats travel on
// separate plain HTTP calls naming the connection id announced in the
// stream's hello event.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airline-checkin/internal/realtime"
)

// DefaultKeepAlive is how often an idle stream gets a comment line so
// proxies keep it open.
const DefaultKeepAlive = 20 * time.Second

var errStreamClosed = errors.New("hub: stream closed")

// HolderFunc returns the authenticated holder id of a request.
type HolderFunc func(c echo.Context) string

// Handler serves the stream and group endpoints.
type Handler struct {
	registry  *realtime.Registry
	holder    HolderFunc
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewHandler returns a Handler registering streams in registry.
func NewHandler(registry *realtime.Registry, holder HolderFunc, keepAlive time.Duration, logger *slog.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: registry, holder: holder, keepAlive: keepAlive, logger: logger.With("transport", "hub")}
}

// stream writes SSE frames to one response.
type stream struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

func (s *stream) Send(ctx context.Context, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	return s.write(deadline, string(ev.Kind), data)
}

func (s *stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stream) write(deadline time.Time, event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	// not every ResponseWriter supports deadlines
	_ = s.rc.SetWriteDeadline(deadline)
	var err error
	if event == "" {
		_, err = fmt.Fprintf(s.w, ": %s\n\n", data)
	} else {
		_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	}
	if err != nil {
		return err
	}
	return s.rc.Flush()
}

// Stream handles GET /v1/hub/stream?flights=MR101,MR102.
func (h *Handler) Stream(c echo.Context) error {
	holder := h.holder(c)
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &stream{w: w, rc: http.NewResponseController(w.Writer)}
	conn := realtime.NewConnection(realtime.KindHub, holder, s, splitFlights(c.QueryParam("flights"))...)
	hello, _ := json.Marshal(map[string]any{"conn_id": conn.ID, "holder": holder, "flights": conn.Flights()})
	if err := s.write(time.Now().Add(10*time.Second), "hello", hello); err != nil {
		return nil
	}
	if err := h.registry.Register(conn); err != nil {
		return nil
	}
	defer h.registry.Remove(conn.ID, realtime.RemovedClosed)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return nil
		case <-ticker.C:
			if err := s.write(time.Now().Add(10*time.Second), "", []byte("keep-alive")); err != nil {
				h.logger.Debug("keep-alive failed", "conn_id", conn.ID, "error", err)
				return nil
			}
		}
	}
}

func splitFlights(q string) []string {
	var out []string
	for _, f := range strings.Split(q, ",") {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// owned resolves the :conn path parameter to a connection of the caller.
func (h *Handler) owned(c echo.Context) (*realtime.Connection, error) {
	conn, ok := h.registry.Get(c.Param("conn"))
	if !ok {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "connection not found"})
	}
	if conn.HolderID != h.holder(c) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return conn, nil
}

// Join handles PUT /v1/hub/:conn/flights/:flight.
func (h *Handler) Join(c echo.Context) error {
	conn, err := h.owned(c)
	if conn == nil {
		return err
	}
	flight := strings.ToUpper(c.Param("flight"))
	if err := h.registry.Subscribe(conn.ID, flight); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "connection not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"conn_id": conn.ID, "flights": conn.Flights()})
}

// Leave handles DELETE /v1/hub/:conn/flights/:flight.
func (h *Handler) Leave(c echo.Context) error {
	conn, err := h.owned(c)
	if conn == nil {
		return err
	}
	if err := h.registry.Unsubscribe(conn.ID, strings.ToUpper(c.Param("flight"))); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "connection not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"conn_id": conn.ID, "flights": conn.Flights()})
}

// Heartbeat handles POST /v1/hub/:conn/heartbeat.
func (h *Handler) Heartbeat(c echo.Context) error {
	conn, err := h.owned(c)
	if conn == nil {
		return err
	}
	if err := h.registry.Heartbeat(conn.ID); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "connection not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
