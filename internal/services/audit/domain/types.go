// Package domain defines the audit event shapes and recorder port
package domain

import "time"

// LedgerEvent is one budget state transition worth keeping for offline analysis
type LedgerEvent struct {
	At            time.Time
	Day           string
	Resource      string
	Action        string // reserved, committed, released, denied
	Amount        float64
	ReservationID string
}

// ScanEvent is one analysis attempt outcome
type ScanEvent struct {
	At        time.Time
	ItemID    string
	ChannelID string
	Outcome   string
	Cost      float64
	RiskScore float64
	Density   float64
	Note      string
}
