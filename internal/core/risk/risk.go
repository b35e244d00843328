// Package risk computes the composite violation-risk score for an item
// scoring is pure given (channel weight, signals, now) so repeats are
// bit-for-bit identical
package risk

import (
	"math"
	"time"
)

// Config holds the blend weights and normalization knobs
// channel and item weights should sum to 1, signal weights likewise
type Config struct {
	// outer blend
	ChannelWeight float64
	ItemWeight    float64

	// item signal blend
	KeywordWeight  float64
	DurationWeight float64
	RecencyWeight  float64
	ViewsWeight    float64
	VelocityWeight float64

	// normalization knobs
	KeywordSaturation int           // hits at which the keyword signal pegs at 100
	DurationIdealLow  int           // seconds, lower edge of the full-score band
	DurationIdealHigh int           // seconds, upper edge of the full-score band
	RecencyWindow     time.Duration // linear decay to zero over this window
	ViewsSaturation   float64       // views at which magnitude pegs at 100, log scale
	VelocitySatPerDay float64       // views/day at which velocity pegs at 100, log scale
}

// Default returns the stock scoring configuration
func Default() Config {
	return Config{
		ChannelWeight: 0.40,
		ItemWeight:    0.60,

		KeywordWeight:  0.35,
		DurationWeight: 0.15,
		RecencyWeight:  0.20,
		ViewsWeight:    0.15,
		VelocityWeight: 0.15,

		KeywordSaturation: 5,
		DurationIdealLow:  60,
		DurationIdealHigh: 600,
		RecencyWindow:     30 * 24 * time.Hour,
		ViewsSaturation:   1e7,
		VelocitySatPerDay: 1e5,
	}
}

// Signals are the per-item inputs to the score
type Signals struct {
	KeywordHits  int
	DurationSecs int
	Views        int64
	PublishedAt  time.Time
}

// Score blends the channel weight with the item signals and clamps to [0,100]
func Score(cfg Config, channelWeight float64, s Signals, now time.Time) float64 {
	item := cfg.KeywordWeight*keywordScore(cfg, s.KeywordHits) +
		cfg.DurationWeight*durationScore(cfg, s.DurationSecs) +
		cfg.RecencyWeight*recencyScore(cfg, s.PublishedAt, now) +
		cfg.ViewsWeight*viewsScore(cfg, s.Views) +
		cfg.VelocityWeight*velocityScore(cfg, s.Views, s.PublishedAt, now)

	return Clamp(cfg.ChannelWeight*channelWeight + cfg.ItemWeight*item)
}

// Clamp pins v into [0,100]
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// keywordScore saturates linearly at KeywordSaturation hits
func keywordScore(cfg Config, hits int) float64 {
	if hits <= 0 {
		return 0
	}
	sat := cfg.KeywordSaturation
	if sat <= 0 {
		sat = 1
	}
	if hits >= sat {
		return 100
	}
	return 100 * float64(hits) / float64(sat)
}

// durationScore is 100 inside the ideal band and decays linearly outside it
// a zero duration scores zero since the signal is missing
func durationScore(cfg Config, secs int) float64 {
	if secs <= 0 {
		return 0
	}
	lo, hi := cfg.DurationIdealLow, cfg.DurationIdealHigh
	switch {
	case secs >= lo && secs <= hi:
		return 100
	case secs < lo:
		return 100 * float64(secs) / float64(lo)
	default:
		// halves every ideal-band width past the upper edge
		over := float64(secs-hi) / float64(hi)
		return Clamp(100 / (1 + over))
	}
}

// recencyScore decays linearly from 100 at publish to 0 at the window edge
func recencyScore(cfg Config, published, now time.Time) float64 {
	if published.IsZero() || !published.Before(now) {
		return 0
	}
	age := now.Sub(published)
	if age >= cfg.RecencyWindow {
		return 0
	}
	return 100 * (1 - float64(age)/float64(cfg.RecencyWindow))
}

// viewsScore is log-scaled so magnitude differences matter more than raw counts
func viewsScore(cfg Config, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return Clamp(100 * math.Log10(float64(views)+1) / math.Log10(cfg.ViewsSaturation+1))
}

// velocityScore log-scales views per day since publish
func velocityScore(cfg Config, views int64, published, now time.Time) float64 {
	if views <= 0 || published.IsZero() || !published.Before(now) {
		return 0
	}
	days := now.Sub(published).Hours() / 24
	if days < 1 {
		days = 1
	}
	perDay := float64(views) / days
	return Clamp(100 * math.Log10(perDay+1) / math.Log10(cfg.VelocitySatPerDay+1))
}
