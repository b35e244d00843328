package module

import (
	"time"

	"tripwire/internal/platform/config"
)

// Options controls channel service behavior. Values may also be read from env
type Options struct {
	// CacheTTL bounds profile cache staleness, zero disables the cache
	CacheTTL time.Duration
}

// FromConfig reads options using the CHANNELS_ prefix
func FromConfig(cfg config.Conf) Options {
	cc := cfg.Prefix("CHANNELS_")
	return Options{
		CacheTTL: cc.MayDuration("CACHE_TTL", 5*time.Minute),
	}
}
