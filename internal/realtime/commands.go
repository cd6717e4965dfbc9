package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/airline-checkin/internal/model"
)

// SeatCommands are the lease operations a terminal may run over a socket.
type SeatCommands interface {
	AcquireSeatLock(ctx context.Context, seatID, holderID string) (model.SeatLease, error)
	ReleaseSeatLock(ctx context.Context, seatID, holderID string) bool
}

// TokenVerifier resolves an access token to the holder id of the staff
// member it was issued to.
type TokenVerifier func(token string) (holderID string, err error)

// Socket actions shared by the duplex and raw transports.
const (
	ActionHello       = "hello"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionHeartbeat   = "heartbeat"
	ActionLock        = "lock"
	ActionRelease     = "release"
)

// ErrUnknownAction is returned by Dispatch for unsupported actions.
var ErrUnknownAction = errors.New("unknown action")

// Command is one inbound client frame.
type Command struct {
	Action  string   `json:"action" cbor:"action"`
	Flight  string   `json:"flight,omitempty" cbor:"flight,omitempty"`
	SeatID  string   `json:"seat_id,omitempty" cbor:"seat_id,omitempty"`
	Token   string   `json:"token,omitempty" cbor:"token,omitempty"`
	Flights []string `json:"flights,omitempty" cbor:"flights,omitempty"`
}

// ReleaseResult is returned for a release action.
type ReleaseResult struct {
	SeatID   string `json:"seat_id" cbor:"seat_id"`
	Released bool   `json:"released" cbor:"released"`
}

// Session is a registered socket connection together with what it may
// do.  Every dispatched command counts as a heartbeat.
type Session struct {
	Registry *Registry
	Conn     *Connection
	Seats    SeatCommands
}

// Dispatch runs cmd for the session's holder.  The returned value, if
// any, is the action's result payload.
func (s Session) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if err := s.Registry.Heartbeat(s.Conn.ID); err != nil {
		return nil, err
	}
	switch cmd.Action {
	case ActionHeartbeat:
		return nil, nil
	case ActionSubscribe, ActionUnsubscribe:
		if cmd.Flight == "" {
			return nil, errors.New("flight is required")
		}
		var err error
		if cmd.Action == ActionSubscribe {
			err = s.Registry.Subscribe(s.Conn.ID, cmd.Flight)
		} else {
			err = s.Registry.Unsubscribe(s.Conn.ID, cmd.Flight)
		}
		if err != nil {
			return nil, err
		}
		return s.Conn.Flights(), nil
	case ActionLock:
		if cmd.SeatID == "" || s.Seats == nil {
			return nil, errors.New("seat_id is required")
		}
		return s.Seats.AcquireSeatLock(ctx, cmd.SeatID, s.Conn.HolderID)
	case ActionRelease:
		if cmd.SeatID == "" || s.Seats == nil {
			return nil, errors.New("seat_id is required")
		}
		return ReleaseResult{SeatID: cmd.SeatID, Released: s.Seats.ReleaseSeatLock(ctx, cmd.SeatID, s.Conn.HolderID)}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownAction, cmd.Action)
}
