package module

import (
	"time"

	"tripwire/internal/platform/config"
)

// Options controls discovery behavior. Values may also be read from env
type Options struct {
	// SweepBatch caps channels swept per tracking pass
	SweepBatch int

	// Keywords are the search terms for the keyword strategy
	Keywords []string

	// Loop pacing
	TickInterval  time.Duration
	TrendingEvery time.Duration
	KeywordEvery  time.Duration

	// Catalog client settings
	CatalogURL string
	CatalogKey string
	CatalogRPS float64
}

// FromConfig reads options using the DISCOVERY_ prefix
func FromConfig(cfg config.Conf) Options {
	dc := cfg.Prefix("DISCOVERY_")
	return Options{
		SweepBatch:    dc.MayInt("SWEEP_BATCH", 50),
		Keywords:      dc.MayCSV("KEYWORDS", nil),
		TickInterval:  dc.MayDuration("TICK_INTERVAL", time.Minute),
		TrendingEvery: dc.MayDuration("TRENDING_EVERY", 15*time.Minute),
		KeywordEvery:  dc.MayDuration("KEYWORD_EVERY", time.Hour),
		CatalogURL:    dc.MayString("CATALOG_URL", "http://localhost:8081"),
		CatalogKey:    dc.MayString("CATALOG_KEY", ""),
		CatalogRPS:    dc.MayFloat64("CATALOG_RPS", 5),
	}
}
