// Package rawsock serves terminals over plain TCP.  Each side writes a
// stream of CBOR values: the client starts with a hello carrying its
// access token, then sends commands; the server answers every frame with
// a Response and interleaves pushed events.
package rawsock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/iliyamo/airline-checkin/internal/realtime"
)

const (
	// helloTimeout bounds how long a new connection may stay silent.
	helloTimeout = 30 * time.Second
	// writeTimeout bounds a response write.
	writeTimeout = 10 * time.Second
	// maxFrameSize caps one inbound CBOR value.
	maxFrameSize = 64 * 1024
)

// Server accepts raw socket terminals and registers them.
type Server struct {
	registry *realtime.Registry
	seats    realtime.SeatCommands
	verify   realtime.TokenVerifier
	logger   *slog.Logger

	active sync.WaitGroup
}

// NewServer returns a Server registering connections in registry.
func NewServer(registry *realtime.Registry, seats realtime.SeatCommands, verify realtime.TokenVerifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, seats: seats, verify: verify, logger: logger.With("transport", "raw")}
}

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then waits for active
// connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info("raw socket server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConn(ctx, conn)
		}()
	}
	s.active.Wait()
	return nil
}

// transport writes frames to one TCP connection.  Responses and pushed
// events share the write lock so frames never interleave.
type transport struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *cbor.Encoder
}

func newTransport(conn net.Conn) *transport {
	return &transport{conn: conn, enc: newEncoder(conn)}
}

func (t *transport) Send(ctx context.Context, ev realtime.Event) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	return t.write(deadline, EventFrame{Event: ev})
}

func (t *transport) Close() error { return t.conn.Close() }

func (t *transport) write(deadline time.Time, v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.enc.Encode(v)
}

func (t *transport) respond(result any, err error) error {
	resp := Response{OK: err == nil}
	if err != nil {
		resp.Error = err.Error()
	} else if result != nil {
		data, merr := Marshal(result)
		if merr != nil {
			resp = Response{Error: "encoding result: " + merr.Error()}
		} else {
			resp.Data = data
		}
	}
	return t.write(time.Now().Add(writeTimeout), resp)
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	tr := newTransport(nc)
	dec := newDecoder(nc)

	_ = nc.SetReadDeadline(time.Now().Add(helloTimeout))
	var hello realtime.Command
	if err := dec.Decode(&hello); err != nil {
		if !errors.Is(err, io.EOF) {
			_ = tr.respond(nil, fmt.Errorf("invalid hello: %w", err))
		}
		return
	}
	if hello.Action != realtime.ActionHello {
		_ = tr.respond(nil, errors.New("first frame must be hello"))
		return
	}
	holder, err := s.verify(hello.Token)
	if err != nil {
		_ = tr.respond(nil, errors.New("unauthorized"))
		return
	}
	_ = nc.SetReadDeadline(time.Time{})

	c := realtime.NewConnection(realtime.KindRaw, holder, tr, hello.Flights...)
	if err := tr.respond(Hello{ConnID: c.ID, Holder: holder, Flights: c.Flights()}, nil); err != nil {
		return
	}
	if err := s.registry.Register(c); err != nil {
		return
	}
	defer s.registry.Remove(c.ID, realtime.RemovedClosed)

	session := realtime.Session{Registry: s.registry, Conn: c, Seats: s.seats}
	for {
		var raw cbor.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("raw socket read ended", "conn_id", c.ID, "error", err)
			}
			return
		}
		if len(raw) > maxFrameSize {
			_ = tr.respond(nil, errors.New("frame too large"))
			return
		}
		var cmd realtime.Command
		if err := Unmarshal(raw, &cmd); err != nil {
			if tr.respond(nil, fmt.Errorf("invalid frame: %w", err)) != nil {
				return
			}
			continue
		}
		result, err := session.Dispatch(ctx, cmd)
		if err != nil {
			s.logger.Debug("raw socket action failed", "conn_id", c.ID, "action", cmd.Action, "error", err)
		}
		if tr.respond(result, err) != nil {
			return
		}
	}
}
