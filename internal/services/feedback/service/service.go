// Package service implements the tier feedback stage
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
	"tripwire/internal/services/feedback/repo"
)

// Config carries feedback stage tunables
type Config struct {
	// BatchSize caps leased verdicts per pass
	BatchSize int
	// LeaseFor hides claimed verdicts from other workers
	LeaseFor time.Duration
	// MaxAttempts drops a verdict after this many failures
	MaxAttempts int
	// RetryBase seeds the exponential retry backoff
	RetryBase time.Duration
	// RescoreLimit caps items rescored per tier change
	RescoreLimit int

	Risk     risk.Config
	Sampling sampling.Config
}

// Svc folds analysis verdicts back into channel reputations
type Svc struct {
	Repo     repo.Repo
	binder   repokit.Binder[repo.Repo]
	db       repokit.TxRunner
	channels chandomain.WriterPort
	cfg      Config
	log      logger.Logger
	now      func() time.Time
}

// New constructs the feedback service
func New(deps modkit.Deps, channels chandomain.WriterPort, cfg Config) *Svc {
	if deps.PG == nil {
		panic("feedback.Service requires a non nil TxRunner")
	}
	if channels == nil {
		panic("feedback.Service requires a channels writer")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
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
	if cfg.RescoreLimit <= 0 {
		cfg.RescoreLimit = 500
	}
	cfg.Sampling = cfg.Sampling.Normalize()
	b := repo.NewPG()
	return &Svc{
		Repo:     b.Bind(deps.PG),
		binder:   b,
		db:       deps.PG,
		channels: channels,
		cfg:      cfg,
		log:      *logger.Named("feedback"),
		now:      time.Now,
	}
}

// ProcessOnce leases one batch of verdicts and folds them
func (s *Svc) ProcessOnce(ctx context.Context) (int, error) {
	now := s.now()
	verdicts, err := s.Repo.LeaseDue(ctx, now, now.Add(s.cfg.LeaseFor), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, v := range verdicts {
		if err := s.foldOne(ctx, v); err != nil {
			s.handleFailure(ctx, v, err)
		}
	}
	return len(verdicts), nil
}

// Record accepts a pushed verdict for a video and queues it for folding
func (s *Svc) Record(ctx context.Context, videoID string, violation bool) error {
	if videoID == "" {
		return perr.Validationf("video_id is required")
	}
	ref, err := s.Repo.ItemRef(ctx, videoID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return perr.NotFoundf("video %q is not tracked", videoID)
		}
		return err
	}
	return s.Repo.EnqueueVerdict(ctx, ref.ItemID, ref.ChannelID, violation)
}

func (s *Svc) foldOne(ctx context.Context, v repo.Verdict) error {
	// the queue row id keys the fold, so a redelivered verdict reads instead
	// of double counting
	profile, tierChanged, err := s.channels.ApplyOutcome(ctx, v.ChannelID, v.Violation, v.ID)
	if err != nil {
		return err
	}

	if tierChanged {
		s.rescoreChannel(ctx, profile)
	}
	return s.Repo.Ack(ctx, v.ID)
}

// rescoreChannel rewrites the scores of a channel's pending items so the queue
// order reflects the new reputation without growing the queue
func (s *Svc) rescoreChannel(ctx context.Context, profile chandomain.Profile) {
	now := s.now()

	items, err := s.Repo.RescorableItems(ctx, profile.ChannelID, s.cfg.RescoreLimit)
	if err != nil {
		s.log.Error().Err(err).Str("channel_id", profile.ChannelID).Msg("rescore listing failed")
		return
	}

	weight := tier.Weight(profile.Tier)
	rescored := 0
	for _, it := range items {
		sig := risk.Signals{
			KeywordHits:  it.KeywordHits,
			DurationSecs: it.DurationSecs,
			Views:        it.Views,
		}
		if it.PublishedAt != nil {
			sig.PublishedAt = *it.PublishedAt
		}
		score := risk.Score(s.cfg.Risk, weight, sig, now)
		density := sampling.Density(s.cfg.Sampling, it.DurationSecs, score)

		if err := s.Repo.UpdateRisk(ctx, it.ID, score, density, now); err != nil {
			s.log.Warn().Err(err).Str("item_id", it.ID).Msg("rescore failed")
			continue
		}
		rescored++
	}
	if rescored > 0 {
		metrics.ItemsRescored.Add(float64(rescored))
		s.log.Info().
			Str("channel_id", profile.ChannelID).
			Str("tier", string(profile.Tier)).
			Int("rescored", rescored).
			Msg("pending items rescored after tier change")
	}
}

// handleFailure routes a fold error to retry or the drop path
func (s *Svc) handleFailure(ctx context.Context, v repo.Verdict, cause error) {
	attempt := v.Attempts + 1
	msg := pstrings.Truncate(cause.Error(), 512)

	if perr.IsCode(cause, perr.ErrorCodeValidation) || attempt >= s.cfg.MaxAttempts {
		s.log.Error().Err(cause).
			Str("feedback_id", v.ID).
			Str("channel_id", v.ChannelID).
			Int("attempts", attempt).
			Msg("verdict dropped")
		if err := s.Repo.Drop(ctx, v.ID); err != nil {
			s.log.Error().Err(err).Str("feedback_id", v.ID).Msg("drop failed")
		}
		return
	}

	metrics.QueueRetries.WithLabelValues("feedback").Inc()
	next := s.now().Add(backoffFor(s.cfg.RetryBase, attempt))
	if err := s.Repo.Nack(ctx, v.ID, msg, next); err != nil {
		s.log.Error().Err(err).Str("feedback_id", v.ID).Msg("nack failed")
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

// Run polls the feedback queue until ctx is done
func (s *Svc) Run(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	s.log.Info().Dur("poll", poll).Msg("feedback worker started")

	for {
		n, err := s.ProcessOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("feedback pass failed")
		}

		wait := poll
		if n > 0 && err == nil {
			wait = 0
		}
		select {
		case <-ctx.Done():
			s.log.Info().Msg("feedback worker stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
