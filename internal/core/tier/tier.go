// Package tier classifies channels by historical violation rate
// pure functions only so classification is deterministic and testable
package tier

import "time"

// Tier buckets a channel by how often its items turn out violating
type Tier string

const (
	// Platinum channels violate on more than half their scanned items
	Platinum Tier = "PLATINUM"
	// Gold channels violate on a quarter to half
	Gold Tier = "GOLD"
	// Silver channels violate on a tenth to a quarter
	Silver Tier = "SILVER"
	// Bronze is the default bucket and the low-rate bucket
	Bronze Tier = "BRONZE"
	// Ignore marks channels with enough clean history to stop sweeping
	Ignore Tier = "IGNORE"
)

// Classify buckets a channel from its lifetime stats
// a channel with no violations only reaches Ignore after enough scans
func Classify(violations, scanned int) Tier {
	if scanned <= 0 {
		return Bronze
	}
	rate := float64(violations) / float64(scanned)
	switch {
	case rate > 0.50:
		return Platinum
	case rate > 0.25:
		return Gold
	case rate > 0.10:
		return Silver
	case rate > 0:
		return Bronze
	case scanned >= ignoreMinScans:
		return Ignore
	default:
		return Bronze
	}
}

// ignoreMinScans is the clean-history threshold before a channel is parked
const ignoreMinScans = 20

// Cadence returns the sweep interval for a tier
// ok is false for tiers that are never swept
func Cadence(t Tier) (time.Duration, bool) {
	switch t {
	case Platinum:
		return 24 * time.Hour, true
	case Gold:
		return 3 * 24 * time.Hour, true
	case Silver:
		return 7 * 24 * time.Hour, true
	case Bronze:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// NextScanAt computes the next sweep time from now
// tiers without a cadence are pushed out a century so due queries skip them
func NextScanAt(t Tier, now time.Time) time.Time {
	if d, ok := Cadence(t); ok {
		return now.Add(d)
	}
	return now.AddDate(100, 0, 0)
}

// Weight returns the channel component of the risk score for a tier
func Weight(t Tier) float64 {
	switch t {
	case Platinum:
		return 100
	case Gold:
		return 75
	case Silver:
		return 50
	case Bronze:
		return 25
	default:
		return 0
	}
}

// Valid reports whether s names a known tier
func Valid(s string) bool {
	switch Tier(s) {
	case Platinum, Gold, Silver, Bronze, Ignore:
		return true
	}
	return false
}
