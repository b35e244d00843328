package module

import (
	"tripwire/internal/platform/config"
	"tripwire/internal/services/ledger/domain"
)

// Options controls ledger allocations. Values may also be read from env
type Options struct {
	// AnalysisDaily is the currency budget for vision calls per UTC day
	AnalysisDaily float64

	// DiscoveryDaily is the unit budget for catalog calls per UTC day
	DiscoveryDaily float64

	// Percentage split of the discovery budget across strategies
	// must sum to 100
	SplitTracking int
	SplitTrending int
	SplitKeyword  int
}

// FromConfig reads options using the LEDGER_ prefix
func FromConfig(cfg config.Conf) Options {
	lc := cfg.Prefix("LEDGER_")
	return Options{
		AnalysisDaily:  lc.MayFloat64("ANALYSIS_DAILY", 260),
		DiscoveryDaily: lc.MayFloat64("DISCOVERY_DAILY", 10000),
		SplitTracking:  lc.MayInt("SPLIT_TRACKING", 70),
		SplitTrending:  lc.MayInt("SPLIT_TRENDING", 20),
		SplitKeyword:   lc.MayInt("SPLIT_KEYWORD", 10),
	}
}

// Allocations expands the options into per-resource daily budgets
// panics when the split does not sum to 100 since the ledger cannot start misconfigured
func (o Options) Allocations() map[string]float64 {
	if o.SplitTracking+o.SplitTrending+o.SplitKeyword != 100 {
		panic("ledger: discovery split percentages must sum to 100")
	}
	return map[string]float64{
		domain.ResourceAnalysis: o.AnalysisDaily,
		domain.ResourceTracking: o.DiscoveryDaily * float64(o.SplitTracking) / 100,
		domain.ResourceTrending: o.DiscoveryDaily * float64(o.SplitTrending) / 100,
		domain.ResourceKeyword:  o.DiscoveryDaily * float64(o.SplitKeyword) / 100,
	}
}
