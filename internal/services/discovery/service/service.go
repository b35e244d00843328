// Package service implements the discovery strategies and their quota accounting
package service

import (
	"context"
	"time"

	"tripwire/internal/adapters/catalog"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	chandomain "tripwire/internal/services/channels/domain"
	"tripwire/internal/services/discovery/domain"
	"tripwire/internal/services/discovery/repo"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// Catalog is the discovery-facing slice of the catalog client
type Catalog interface {
	ChannelVideos(ctx context.Context, channelID string, since time.Time) ([]catalog.Video, error)
	Trending(ctx context.Context) ([]catalog.Video, error)
	Search(ctx context.Context, query string) ([]catalog.Video, error)
}

// Config carries discovery tunables
type Config struct {
	// SweepBatch caps channels swept per tracking pass
	SweepBatch int

	// Keywords are the configured search terms for the keyword strategy
	Keywords []string
}

// Svc implements domain.IngestPort and domain.QuotaPort and runs the strategies
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	ledger ledgerdomain.LedgerPort
	sweep  chandomain.SweepPort
	cat    Catalog
	cfg    Config
	log    logger.Logger
	now    func() time.Time
}

// New constructs the discovery service
func New(deps modkit.Deps, ledger ledgerdomain.LedgerPort, sweep chandomain.SweepPort, cat Catalog, cfg Config) *Svc {
	if deps.PG == nil {
		panic("discovery.Service requires a non nil TxRunner")
	}
	if ledger == nil {
		panic("discovery.Service requires a ledger port")
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 50
	}
	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		ledger: ledger,
		sweep:  sweep,
		cat:    cat,
		cfg:    cfg,
		log:    *logger.Named("discovery"),
		now:    time.Now,
	}
}

// Ingest stores a candidate and queues it for scoring
// duplicates on video id are absorbed without touching the queue
func (s *Svc) Ingest(ctx context.Context, c domain.Candidate) (bool, error) {
	if c.VideoID == "" || c.ChannelID == "" {
		return false, perr.Validationf("candidate requires video_id and channel_id")
	}
	if _, err := domain.ParseStrategy(string(c.Strategy)); err != nil {
		return false, err
	}

	var created bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		id, err := r.InsertItem(ctx, c)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		created = true
		return r.EnqueueScore(ctx, id)
	})
	if err != nil {
		return false, err
	}
	if created {
		metrics.ItemsDiscovered.WithLabelValues(string(c.Strategy)).Inc()
	}
	return created, nil
}

// SweepTracking walks due channels, spending tracking budget per sweep call
// returns how many new items were ingested, ErrExhausted when the pool denies
func (s *Svc) SweepTracking(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.sweep.DueChannels(ctx, now, s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for _, ch := range due {
		res, err := s.ledger.Reserve(ctx, ledgerdomain.ResourceTracking, catalog.CostChannelSweep)
		if err != nil {
			return ingested, err
		}

		since := time.Time{}
		if ch.LastScannedAt != nil {
			since = *ch.LastScannedAt
		}
		videos, err := s.cat.ChannelVideos(ctx, ch.ChannelID, since)
		if err != nil {
			// the call may not have spent quota, refund and move on
			if rerr := s.ledger.Release(ctx, res.ID); rerr != nil {
				s.log.Warn().Err(rerr).Str("reservation_id", res.ID).Msg("release after sweep failure")
			}
			s.log.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("channel sweep failed")
			continue
		}
		// sweep cost is per call, not per result
		if err := s.ledger.Commit(ctx, res.ID, catalog.CostChannelSweep); err != nil {
			return ingested, err
		}

		ingested += s.ingestBatch(ctx, videos, domain.StrategyTracking)
		if err := s.sweep.MarkSwept(ctx, ch.ChannelID, ch.Tier, now); err != nil {
			s.log.Warn().Err(err).Str("channel_id", ch.ChannelID).Msg("mark swept failed")
		}
	}
	return ingested, nil
}

// PullTrending samples the trending feed on the trending pool
func (s *Svc) PullTrending(ctx context.Context) (int, error) {
	res, err := s.ledger.Reserve(ctx, ledgerdomain.ResourceTrending, catalog.CostTrending)
	if err != nil {
		return 0, err
	}
	videos, err := s.cat.Trending(ctx)
	if err != nil {
		if rerr := s.ledger.Release(ctx, res.ID); rerr != nil {
			s.log.Warn().Err(rerr).Str("reservation_id", res.ID).Msg("release after trending failure")
		}
		return 0, err
	}
	if err := s.ledger.Commit(ctx, res.ID, catalog.CostTrending); err != nil {
		return 0, err
	}
	return s.ingestBatch(ctx, videos, domain.StrategyTrending), nil
}

// SearchKeywords runs each configured keyword on the keyword pool
// stops at the first budget denial since every search costs the same
func (s *Svc) SearchKeywords(ctx context.Context) (int, error) {
	ingested := 0
	for _, kw := range s.cfg.Keywords {
		res, err := s.ledger.Reserve(ctx, ledgerdomain.ResourceKeyword, catalog.CostKeywordSearch)
		if err != nil {
			return ingested, err
		}
		videos, err := s.cat.Search(ctx, kw)
		if err != nil {
			if rerr := s.ledger.Release(ctx, res.ID); rerr != nil {
				s.log.Warn().Err(rerr).Str("reservation_id", res.ID).Msg("release after search failure")
			}
			s.log.Warn().Err(err).Str("keyword", kw).Msg("keyword search failed")
			continue
		}
		if err := s.ledger.Commit(ctx, res.ID, catalog.CostKeywordSearch); err != nil {
			return ingested, err
		}
		ingested += s.ingestBatch(ctx, videos, domain.StrategyKeyword)
	}
	return ingested, nil
}

func (s *Svc) ingestBatch(ctx context.Context, videos []catalog.Video, strategy domain.Strategy) int {
	created := 0
	for _, v := range videos {
		ok, err := s.Ingest(ctx, domain.Candidate{
			VideoID:      v.VideoID,
			ChannelID:    v.ChannelID,
			Title:        v.Title,
			DurationSecs: v.DurationSecs,
			Views:        v.Views,
			PublishedAt:  v.PublishedAt,
			KeywordHits:  v.KeywordHits,
			Strategy:     strategy,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("video_id", v.VideoID).Msg("candidate intake failed")
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

// RemainingFor reports one strategy's headroom
func (s *Svc) RemainingFor(ctx context.Context, strategy domain.Strategy) (float64, error) {
	r := strategy.Resource()
	if r == "" {
		return 0, perr.Validationf("unknown discovery strategy %q", strategy)
	}
	return s.ledger.Remaining(ctx, r)
}

// RemainingAll reports every strategy's headroom
func (s *Svc) RemainingAll(ctx context.Context) ([]domain.Quota, error) {
	out := make([]domain.Quota, 0, len(domain.Strategies))
	for _, strat := range domain.Strategies {
		left, err := s.ledger.Remaining(ctx, strat.Resource())
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Quota{Strategy: strat, Remaining: left})
	}
	return out, nil
}
