package domain

import (
	"context"
	"time"

	"tripwire/internal/core/tier"
)

// ReaderPort serves profile reads, possibly through a cache
// a channel with no row reads as the synthesized bronze default
type ReaderPort interface {
	Get(ctx context.Context, channelID string) (Profile, error)
}

// WriterPort owns all profile mutations
type WriterPort interface {
	// ApplyOutcome folds one verdict into the profile and reclassifies
	// outcomeID keys the fold so at-least-once redelivery cannot double count
	// tierChanged reports whether the tier moved so callers can re-score
	ApplyOutcome(ctx context.Context, channelID string, violation bool, outcomeID string) (p Profile, tierChanged bool, err error)
}

// SweepPort feeds the discovery tracking strategy
type SweepPort interface {
	// DueChannels lists channels whose next_scan_at has passed, most overdue first
	DueChannels(ctx context.Context, now time.Time, limit int) ([]Profile, error)

	// MarkSwept stamps a sweep and pushes next_scan_at out by the tier cadence
	MarkSwept(ctx context.Context, channelID string, t tier.Tier, now time.Time) error
}
