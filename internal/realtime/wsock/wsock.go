// Package wsock serves terminals over WebSocket with JSON frames.  The
// access token travels in the token query parameter because browsers
// cannot set headers on the upgrade request.
package wsock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/airline-checkin/internal/realtime"
)

const writeTimeout = 10 * time.Second

// Frame is what the server writes: either an ack for a client command or
// a pushed event.
type Frame struct {
	Type   string          `json:"type"`
	Action string          `json:"action,omitempty"`
	OK     bool            `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   any             `json:"data,omitempty"`
	Event  *realtime.Event `json:"event,omitempty"`
}

// Handler upgrades requests and serves the socket.
type Handler struct {
	registry *realtime.Registry
	seats    realtime.SeatCommands
	verify   realtime.TokenVerifier
	logger   *slog.Logger
}

// NewHandler returns a Handler registering connections in registry.
func NewHandler(registry *realtime.Registry, seats realtime.SeatCommands, verify realtime.TokenVerifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: registry, seats: seats, verify: verify, logger: logger.With("transport", "duplex")}
}

// Serve handles GET /v1/ws?token=...&flights=MR101,MR102.
func (h *Handler) Serve(c echo.Context) error {
	holder, err := h.verify(c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	flights := splitFlights(c.QueryParam("flights"))
	srv := websocket.Server{
		// terminals authenticate with the token, not the origin
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			h.serveConn(c.Request().Context(), ws, holder, flights)
		},
	}
	srv.ServeHTTP(c.Response(), c.Request())
	return nil
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

type transport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (t *transport) Send(ctx context.Context, ev realtime.Event) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	return t.write(deadline, Frame{Type: "event", Event: &ev})
}

func (t *transport) Close() error { return t.ws.Close() }

func (t *transport) write(deadline time.Time, f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return websocket.JSON.Send(t.ws, f)
}

func (h *Handler) serveConn(ctx context.Context, ws *websocket.Conn, holder string, flights []string) {
	tr := &transport{ws: ws}
	conn := realtime.NewConnection(realtime.KindDuplex, holder, tr, flights...)
	hello := Frame{Type: "hello", OK: true, Data: map[string]any{"conn_id": conn.ID, "holder": holder, "flights": conn.Flights()}}
	if err := tr.write(time.Now().Add(writeTimeout), hello); err != nil {
		_ = ws.Close()
		return
	}
	if err := h.registry.Register(conn); err != nil {
		_ = ws.Close()
		return
	}
	defer h.registry.Remove(conn.ID, realtime.RemovedClosed)

	session := realtime.Session{Registry: h.registry, Conn: conn, Seats: h.seats}
	for {
		var cmd realtime.Command
		if err := websocket.JSON.Receive(ws, &cmd); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("websocket read ended", "conn_id", conn.ID, "error", err)
			}
			return
		}
		result, err := session.Dispatch(ctx, cmd)
		ack := Frame{Type: "ack", Action: cmd.Action, OK: err == nil, Data: result}
		if err != nil {
			ack.Error = err.Error()
			ack.Data = nil
		}
		if tr.write(time.Now().Add(writeTimeout), ack) != nil {
			return
		}
	}
}
