package checkin

import "time"

// Outcome classifies the result of an assignment attempt.
type Outcome string

const (
	Success  Outcome = "SUCCESS"
	NotFound Outcome = "NOT_FOUND"
	Conflict Outcome = "CONFLICT"
	Timeout  Outcome = "TIMEOUT"
	Error    Outcome = "ERROR"
)

// Result is what Assign reports.  The seat and passenger fields are filled
// on Success; Reason is a human-readable explanation for every other
// outcome, such as the name of the passenger already occupying the seat.
type Result struct {
	Outcome          Outcome   `json:"outcome"`
	SeatID           string    `json:"seat_id,omitempty"`
	SeatNumber       string    `json:"seat_number,omitempty"`
	FlightNumber     string    `json:"flight_number,omitempty"`
	BookingReference string    `json:"booking_reference,omitempty"`
	PassengerName    string    `json:"passenger_name,omitempty"`
	CheckInTime      time.Time `json:"check_in_time,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// OK reports whether the assignment committed.
func (r Result) OK() bool { return r.Outcome == Success }

func reject(o Outcome, reason string) *rejection {
	return &rejection{res: Result{Outcome: o, Reason: reason}}
}

// rejection carries a terminal Result out of the transaction callback so
// the transaction rolls back with no writes.
type rejection struct {
	res Result
}

func (r *rejection) Error() string { return string(r.res.Outcome) + ": " + r.res.Reason }
