package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/airline-checkin/internal/model"
)

// FlightRepo manages persistence for flights.
type FlightRepo struct {
	db *sql.DB
}

// NewFlightRepo returns a FlightRepo bound to db.
func NewFlightRepo(db *sql.DB) *FlightRepo { return &FlightRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *FlightRepo) DB() *sql.DB { return r.db }

// GetByNumber loads a flight.  ErrFlightNotFound is returned when the
// flight does not exist.
func (r *FlightRepo) GetByNumber(ctx context.Context, flight string) (model.Flight, error) {
	const q = `SELECT ` + flightColumns + ` FROM flights WHERE flight_number = ?`
	f, err := scanFlight(r.db.QueryRowContext(ctx, q, flight))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Flight{}, ErrFlightNotFound
	}
	return f, err
}

// UpdateStatus sets the flight's status and bumps its version.  It
// returns the updated row.  ErrFlightNotFound is returned for an unknown
// flight.
func (r *FlightRepo) UpdateStatus(ctx context.Context, flight string, status model.FlightStatus) (model.Flight, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Flight{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + flightColumns + ` FROM flights WHERE flight_number = ? FOR UPDATE`
	cur, err := scanFlight(tx.QueryRowContext(ctx, sel, flight))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Flight{}, ErrFlightNotFound
	}
	if err != nil {
		return model.Flight{}, err
	}
	const upd = `UPDATE flights SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
	             WHERE flight_number = ? AND version = ?`
	res, err := tx.ExecContext(ctx, upd, string(status), flight, cur.Version)
	if err != nil {
		return model.Flight{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Flight{}, err
	} else if n == 0 {
		return model.Flight{}, ErrStaleVersion
	}
	updated, err := scanFlight(tx.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights WHERE flight_number = ?`, flight))
	if err != nil {
		return model.Flight{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Flight{}, err
	}
	committed = true
	return updated, nil
}
