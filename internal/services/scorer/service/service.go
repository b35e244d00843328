// Package service implements the risk scoring stage
package service

import (
	"context"
	"time"

	"tripwire/internal/core/risk"
	"tripwire/internal/core/sampling"
	"tripwire/internal/core/tier"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	pstrings "tripwire/internal/platform/strings"
	chandomain "tripwire/internal/services/channels/domain"
	"tripwire/internal/services/scorer/repo"
)

// Config carries scoring stage tunables
type Config struct {
	// BatchSize caps leased tasks per pass
	BatchSize int
	// LeaseFor hides claimed tasks from other workers
	LeaseFor time.Duration
	// MaxAttempts dead letters a task after this many failures
	MaxAttempts int
	// RetryBase seeds the exponential retry backoff
	RetryBase time.Duration

	Risk     risk.Config
	Sampling sampling.Config
}

// Svc leases scoring tasks and attaches risk scores
type Svc struct {
	Repo     repo.Repo
	binder   repokit.Binder[repo.Repo]
	db       repokit.TxRunner
	channels chandomain.ReaderPort
	cfg      Config
	log      logger.Logger
	now      func() time.Time
}

// New constructs the scorer service
func New(deps modkit.Deps, channels chandomain.ReaderPort, cfg Config) *Svc {
	if deps.PG == nil {
		panic("scorer.Service requires a non nil TxRunner")
	}
	if channels == nil {
		panic("scorer.Service requires a channels reader")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 2 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 30 * time.Second
	}
	cfg.Sampling = cfg.Sampling.Normalize()
	b := repo.NewPG()
	return &Svc{
		Repo:     b.Bind(deps.PG),
		binder:   b,
		db:       deps.PG,
		channels: channels,
		cfg:      cfg,
		log:      *logger.Named("scorer"),
		now:      time.Now,
	}
}

// ProcessOnce leases one batch and scores it, returning tasks handled
func (s *Svc) ProcessOnce(ctx context.Context) (int, error) {
	now := s.now()
	leases, err := s.Repo.LeaseDue(ctx, now, now.Add(s.cfg.LeaseFor), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, l := range leases {
		if err := s.scoreOne(ctx, l); err != nil {
			s.handleFailure(ctx, l, err)
		}
	}
	return len(leases), nil
}

func (s *Svc) scoreOne(ctx context.Context, l repo.Lease) error {
	now := s.now()

	item, err := s.Repo.LoadItem(ctx, l.ItemID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			// the item vanished, drop the orphan task
			return s.Repo.Ack(ctx, l.ItemID)
		}
		return err
	}
	if item.Status.Terminal() {
		return s.Repo.Ack(ctx, l.ItemID)
	}
	if item.DurationSecs <= 0 {
		// duration drives sampling and cost, an item without one can never
		// be dispatched
		return perr.Validationf("item %s has no usable duration", l.ItemID)
	}

	profile, err := s.channels.Get(ctx, item.ChannelID)
	if err != nil {
		return err
	}

	sig := risk.Signals{
		KeywordHits:  item.KeywordHits,
		DurationSecs: item.DurationSecs,
		Views:        item.Views,
	}
	if item.PublishedAt != nil {
		sig.PublishedAt = *item.PublishedAt
	}
	score := risk.Score(s.cfg.Risk, tier.Weight(profile.Tier), sig, now)
	density := sampling.Density(s.cfg.Sampling, item.DurationSecs, score)

	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if _, err := r.MarkScoredAndQueue(ctx, l.ItemID, score, density, now); err != nil {
			return err
		}
		return r.Ack(ctx, l.ItemID)
	})
	if err != nil {
		return err
	}

	metrics.ItemsScored.Inc()
	s.log.Debug().
		Str("item_id", l.ItemID).
		Str("channel_id", item.ChannelID).
		Float64("risk", score).
		Float64("density", density).
		Msg("item scored")
	return nil
}

// handleFailure routes a scoring error to retry or the dead letter state
func (s *Svc) handleFailure(ctx context.Context, l repo.Lease, cause error) {
	attempt := l.Attempts + 1
	// last_error columns stay bounded even for chatty upstream errors
	msg := pstrings.Truncate(cause.Error(), 512)

	if perr.IsCode(cause, perr.ErrorCodeValidation) || perr.IsCode(cause, perr.ErrorCodeInvalidArgument) {
		s.log.Warn().Err(cause).Str("item_id", l.ItemID).Msg("malformed item dead lettered")
		if err := s.Repo.DeadLetter(ctx, l.ItemID, msg); err != nil {
			s.log.Error().Err(err).Str("item_id", l.ItemID).Msg("dead letter failed")
		}
		return
	}

	if attempt >= s.cfg.MaxAttempts {
		s.log.Error().Err(cause).Str("item_id", l.ItemID).Int("attempts", attempt).Msg("scoring retries exhausted")
		if err := s.Repo.DeadLetter(ctx, l.ItemID, msg); err != nil {
			s.log.Error().Err(err).Str("item_id", l.ItemID).Msg("dead letter failed")
		}
		return
	}

	metrics.QueueRetries.WithLabelValues("score").Inc()
	next := s.now().Add(backoffFor(s.cfg.RetryBase, attempt))
	if err := s.Repo.Nack(ctx, l.ItemID, msg, next); err != nil {
		s.log.Error().Err(err).Str("item_id", l.ItemID).Msg("nack failed")
	}
}

// backoffFor doubles per attempt, capped at fifteen minutes
func backoffFor(base time.Duration, attempt int) time.Duration {
	const limit = 15 * time.Minute
	d := base << uint(attempt-1)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}
