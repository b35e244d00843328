// Package service implements channel tier classification workflows
package service

import (
	"context"
	"encoding/json"
	"time"

	"tripwire/internal/core/tier"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	"tripwire/internal/platform/store"
	"tripwire/internal/services/channels/domain"
	"tripwire/internal/services/channels/repo"
)

// Config carries channel service tunables
type Config struct {
	// CacheTTL bounds profile cache staleness, zero disables caching
	CacheTTL time.Duration
}

// Svc implements domain.ReaderPort, domain.WriterPort and domain.SweepPort
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	cache  store.Cache
	cfg    Config
	log    logger.Logger
	now    func() time.Time
}

// New constructs the channels service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("channels.Service requires a non nil TxRunner")
	}
	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		cache:  deps.RDS,
		cfg:    cfg,
		log:    *logger.Named("channels"),
		now:    time.Now,
	}
}

func cacheKey(channelID string) string { return "channel:" + channelID }

// Get returns the profile for a channel, synthesizing a Bronze default for
// channels never seen before
func (s *Svc) Get(ctx context.Context, channelID string) (domain.Profile, error) {
	if channelID == "" {
		return domain.Profile{}, perr.Validationf("channel_id is required")
	}

	if s.cacheable() {
		if raw, ok, err := s.cache.Get(ctx, cacheKey(channelID)); err == nil && ok {
			var p domain.Profile
			if json.Unmarshal([]byte(raw), &p) == nil {
				return p, nil
			}
		}
	}

	p, ok, err := s.Repo.Get(ctx, channelID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Default(channelID, s.now()), nil
	}

	s.cachePut(ctx, p)
	return p, nil
}

// ApplyOutcome folds an analysis verdict into the channel's counters and
// recomputes its tier. Returns the updated profile and whether the tier moved
// the row lock taken by the counter update serializes concurrent verdicts,
// and the outcome claim makes redelivered verdicts read-only
func (s *Svc) ApplyOutcome(ctx context.Context, channelID string, violation bool, outcomeID string) (domain.Profile, bool, error) {
	if channelID == "" {
		return domain.Profile{}, false, perr.Validationf("channel_id is required")
	}
	if outcomeID == "" {
		return domain.Profile{}, false, perr.Validationf("outcome_id is required")
	}

	now := s.now()
	var (
		out     domain.Profile
		changed bool
	)
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)

		fresh, err := r.ClaimOutcome(ctx, outcomeID)
		if err != nil {
			return err
		}
		if !fresh {
			// already folded by an earlier delivery, report current state
			p, ok, err := r.Get(ctx, channelID)
			if err != nil {
				return err
			}
			if !ok {
				p = domain.Default(channelID, now)
			}
			out = p
			return nil
		}

		prev, scanned, violations, err := r.IncrementOutcome(ctx, channelID, violation)
		if err != nil {
			return err
		}

		next := tier.Classify(violations, scanned)
		nextScanAt := tier.NextScanAt(next, now)
		if err := r.SetTier(ctx, channelID, next, nextScanAt); err != nil {
			return err
		}

		changed = next != prev
		out = domain.Profile{
			ChannelID:       channelID,
			Tier:            next,
			ViolationsFound: violations,
			ItemsScanned:    scanned,
			NextScanAt:      nextScanAt,
			UpdatedAt:       now,
		}
		return nil
	})
	if err != nil {
		return domain.Profile{}, false, err
	}

	if changed {
		metrics.TierChanges.WithLabelValues(string(out.Tier)).Inc()
		s.log.Info().
			Str("channel_id", channelID).
			Str("tier", string(out.Tier)).
			Int("items_scanned", out.ItemsScanned).
			Int("violations_found", out.ViolationsFound).
			Msg("channel tier changed")
	}

	s.cacheDrop(ctx, channelID)
	return out, changed, nil
}

// DueChannels lists channels whose scan cadence has elapsed, most overdue first
func (s *Svc) DueChannels(ctx context.Context, now time.Time, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Repo.Due(ctx, now, limit)
}

// MarkSwept records a completed sweep and schedules the next one per the
// channel's current tier cadence
func (s *Svc) MarkSwept(ctx context.Context, channelID string, t tier.Tier, now time.Time) error {
	if err := s.Repo.MarkSwept(ctx, channelID, now, tier.NextScanAt(t, now)); err != nil {
		return err
	}
	s.cacheDrop(ctx, channelID)
	return nil
}

func (s *Svc) cacheable() bool { return s.cache != nil && s.cfg.CacheTTL > 0 }

func (s *Svc) cachePut(ctx context.Context, p domain.Profile) {
	if !s.cacheable() {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(p.ChannelID), string(raw), s.cfg.CacheTTL); err != nil {
		s.log.Debug().Err(err).Str("channel_id", p.ChannelID).Msg("profile cache set failed")
	}
}

func (s *Svc) cacheDrop(ctx context.Context, channelID string) {
	if !s.cacheable() {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(channelID)); err != nil {
		s.log.Debug().Err(err).Str("channel_id", channelID).Msg("profile cache del failed")
	}
}
