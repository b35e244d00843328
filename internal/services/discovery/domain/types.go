// Package domain defines the discovery service types and ports
package domain

import (
	"time"

	perr "tripwire/internal/platform/errors"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// Strategy names a way of finding candidate videos
// each strategy spends from its own ledger sub-pool
type Strategy string

const (
	// StrategyTracking sweeps the upload feeds of known channels
	StrategyTracking Strategy = "tracking"
	// StrategyTrending samples the catalog's trending feed
	StrategyTrending Strategy = "trending"
	// StrategyKeyword runs configured keyword searches
	StrategyKeyword Strategy = "keyword"
)

// ParseStrategy validates a wire string into a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyTracking, StrategyTrending, StrategyKeyword:
		return Strategy(s), nil
	default:
		return "", perr.Validationf("unknown discovery strategy %q", s)
	}
}

// Resource maps the strategy to its budget pool
func (s Strategy) Resource() string {
	switch s {
	case StrategyTracking:
		return ledgerdomain.ResourceTracking
	case StrategyTrending:
		return ledgerdomain.ResourceTrending
	case StrategyKeyword:
		return ledgerdomain.ResourceKeyword
	default:
		return ""
	}
}

// Strategies lists all strategies in sweep order
var Strategies = []Strategy{StrategyTracking, StrategyTrending, StrategyKeyword}

// Candidate is a video surfaced by a strategy, ready for intake
type Candidate struct {
	VideoID      string
	ChannelID    string
	Title        string
	DurationSecs int
	Views        int64
	PublishedAt  time.Time
	KeywordHits  int
	Strategy     Strategy
}

// Quota is one strategy's remaining daily headroom for the API
type Quota struct {
	Strategy  Strategy `json:"strategy"`
	Remaining float64  `json:"remaining"`
}
