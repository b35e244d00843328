// Package domain defines the triage item lifecycle shared by the pipeline stages
package domain

import "time"

// Status is the triage item lifecycle state
type Status string

const (
	// StatusDiscovered means intake stored the item, scoring pending
	StatusDiscovered Status = "discovered"
	// StatusScored means a risk score is attached, scheduling pending
	StatusScored Status = "scored"
	// StatusQueued means the item waits in the scan queue
	StatusQueued Status = "queued"
	// StatusAnalyzing means a scan attempt is in flight
	StatusAnalyzing Status = "analyzing"
	// StatusAnalyzed is terminal, the vision verdict is in
	StatusAnalyzed Status = "analyzed"
	// StatusFailed is terminal for unrecoverable scan errors
	StatusFailed Status = "failed"
	// StatusDeadLettered is terminal after retry exhaustion, needs manual triage
	StatusDeadLettered Status = "dead_lettered"
)

// Terminal reports whether the status accepts no further pipeline work
func (s Status) Terminal() bool {
	switch s {
	case StatusAnalyzed, StatusFailed, StatusDeadLettered:
		return true
	}
	return false
}

// Item is a candidate video moving through the triage pipeline
type Item struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	ChannelID    string     `json:"channel_id"`
	Title        string     `json:"title,omitempty"`
	Strategy     string     `json:"strategy"`
	KeywordHits  int        `json:"keyword_hits"`
	DurationSecs int        `json:"duration_secs"`
	Views        int64      `json:"views"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	RiskScore    *float64   `json:"risk_score,omitempty"`
	Status       Status     `json:"status"`
	LastError    *string    `json:"last_error,omitempty"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	ScoredAt     *time.Time `json:"scored_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
