// Package domain defines the webhook payloads
package domain

import "time"

// DiscoveredInput is a pushed candidate video
type DiscoveredInput struct {
	VideoID      string     `json:"video_id" validate:"required,min=1,max=64"`
	ChannelID    string     `json:"channel_id" validate:"required,min=1,max=64"`
	Title        string     `json:"title" validate:"omitempty,max=500"`
	DurationSecs int        `json:"duration_secs" validate:"required,min=1"`
	Views        int64      `json:"views" validate:"omitempty,min=0"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	KeywordHits  int        `json:"keyword_hits" validate:"omitempty,min=0"`
	Strategy     string     `json:"strategy" validate:"omitempty,oneof=tracking trending keyword"`
}

// DiscoveredOut reports whether the pushed video was new
type DiscoveredOut struct {
	VideoID string `json:"video_id"`
	Created bool   `json:"created"`
}

// ResultInput is a pushed analysis verdict
type ResultInput struct {
	VideoID   string `json:"video_id" validate:"required,min=1,max=64"`
	Violation bool   `json:"violation"`
}

// ResultOut confirms the verdict was queued for folding
type ResultOut struct {
	VideoID string `json:"video_id"`
	Queued  bool   `json:"queued"`
}
