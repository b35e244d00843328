// Package domain defines the ledger service types and ports
package domain

import (
	"time"

	perr "tripwire/internal/platform/errors"
)

// Resource names the independently budgeted pools
// discovery strategies each get their own sub-pool so one cannot starve another
const (
	ResourceAnalysis = "analysis"
	ResourceTracking = "discovery:tracking"
	ResourceTrending = "discovery:trending"
	ResourceKeyword  = "discovery:keyword"
)

// ErrExhausted signals a clean budget denial, expected during normal operation
var ErrExhausted = perr.New(perr.ErrorCodeExhausted, "budget exhausted for today")

// ReservationState is the lifecycle of a held amount
type ReservationState string

const (
	// StateHeld means the amount is reserved but not yet spent
	StateHeld ReservationState = "held"
	// StateCommitted means the spend happened and the actual amount is booked
	StateCommitted ReservationState = "committed"
	// StateReleased means the hold was refunded without spending
	StateReleased ReservationState = "released"
)

// Reservation is a held slice of a day's budget
type Reservation struct {
	ID       string
	Day      time.Time
	Resource string
	Amount   float64
	State    ReservationState
}

// State is one ledger row as exposed to the API
type State struct {
	Day       time.Time `json:"day"`
	Resource  string    `json:"resource"`
	Allocated float64   `json:"allocated"`
	Reserved  float64   `json:"reserved"`
	Committed float64   `json:"committed"`
}

// Remaining is the headroom still reservable on a State
func (s State) Remaining() float64 { return s.Allocated - s.Reserved - s.Committed }
