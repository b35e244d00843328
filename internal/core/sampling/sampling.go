// Package sampling picks the frame-sampling density for analysis calls
// density is the fraction of a video's frames sent to the vision model
package sampling

// Config holds the density knobs
type Config struct {
	// LongTail is the density for videos over twenty minutes, valid in [0.1, 0.2]
	LongTail float64
	// HighRiskThreshold is the risk score at which the boost applies
	HighRiskThreshold float64
	// HighRiskBoost multiplies the base density for high risk items, valid in [1.5, 2.0]
	HighRiskBoost float64
}

// Default returns the stock sampling configuration
func Default() Config {
	return Config{
		LongTail:          0.15,
		HighRiskThreshold: 80,
		HighRiskBoost:     1.5,
	}
}

// Normalize pins the knobs into their valid ranges
func (c Config) Normalize() Config {
	if c.LongTail < 0.1 {
		c.LongTail = 0.1
	}
	if c.LongTail > 0.2 {
		c.LongTail = 0.2
	}
	if c.HighRiskBoost < 1.5 {
		c.HighRiskBoost = 1.5
	}
	if c.HighRiskBoost > 2.0 {
		c.HighRiskBoost = 2.0
	}
	if c.HighRiskThreshold <= 0 {
		c.HighRiskThreshold = 80
	}
	return c
}

// duration band edges in seconds
const (
	bandShort  = 2 * 60
	bandMid    = 5 * 60
	bandLong   = 10 * 60
	bandLonger = 20 * 60
)

// Base returns the duration-band density before any risk boost
// bands are lower-inclusive, so a 20 minute item is in the long tail
func Base(cfg Config, durationSecs int) float64 {
	switch {
	case durationSecs < bandShort:
		return 1.0
	case durationSecs < bandMid:
		return 0.5
	case durationSecs < bandLong:
		return 0.33
	case durationSecs < bandLonger:
		return 0.25
	default:
		return cfg.LongTail
	}
}

// shorterBase returns the base density of the next shorter band
// the shortest band caps at its own base
func shorterBase(cfg Config, durationSecs int) float64 {
	switch {
	case durationSecs < bandShort:
		return 1.0
	case durationSecs < bandMid:
		return 1.0
	case durationSecs < bandLong:
		return 0.5
	case durationSecs < bandLonger:
		return 0.33
	default:
		return 0.25
	}
}

// Density computes the effective sampling density for an item
// high risk items get the boost, capped at the next shorter band's base
func Density(cfg Config, durationSecs int, riskScore float64) float64 {
	cfg = cfg.Normalize()
	base := Base(cfg, durationSecs)
	if riskScore < cfg.HighRiskThreshold {
		return base
	}
	boosted := base * cfg.HighRiskBoost
	if limit := shorterBase(cfg, durationSecs); boosted > limit {
		return limit
	}
	return boosted
}
