// Package domain defines the channel profile types and ports
package domain

import (
	"time"

	"tripwire/internal/core/tier"
)

// Profile is the per-channel reputation record driving cadence and risk weighting
type Profile struct {
	ChannelID       string     `json:"channel_id"`
	Tier            tier.Tier  `json:"tier"`
	ViolationsFound int        `json:"violations_found"`
	ItemsScanned    int        `json:"items_scanned"`
	LastScannedAt   *time.Time `json:"last_scanned_at,omitempty"`
	NextScanAt      time.Time  `json:"next_scan_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Default synthesizes the profile for a channel never seen before
func Default(channelID string, now time.Time) Profile {
	return Profile{
		ChannelID:  channelID,
		Tier:       tier.Bronze,
		NextScanAt: now,
		UpdatedAt:  now,
	}
}
