package service

import (
	"context"
	"time"

	perr "tripwire/internal/platform/errors"
	ptime "tripwire/internal/platform/time"
	"tripwire/internal/services/discovery/domain"
)

// RunOptions controls the discovery worker loop
type RunOptions struct {
	// TickInterval spaces tracking sweeps
	TickInterval time.Duration
	// TrendingEvery spaces trending pulls
	TrendingEvery time.Duration
	// KeywordEvery spaces keyword search rounds
	KeywordEvery time.Duration
}

// loopState carries the worker's pacing between passes
// resume holds the earliest next attempt per exhausted pool, a zero or past
// value means the strategy is live
type loopState struct {
	resume       map[domain.Strategy]time.Time
	nextTrending time.Time
	nextKeyword  time.Time
}

func newLoopState() *loopState {
	return &loopState{resume: map[domain.Strategy]time.Time{}}
}

// Run executes the strategy loop until ctx is done
// a denied pool idles only its own strategy until the next UTC day, the
// others keep their cadence
func (s *Svc) Run(ctx context.Context, opts RunOptions) error {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.TrendingEvery <= 0 {
		opts.TrendingEvery = 15 * time.Minute
	}
	if opts.KeywordEvery <= 0 {
		opts.KeywordEvery = time.Hour
	}

	st := newLoopState()

	s.log.Info().
		Dur("tick", opts.TickInterval).
		Dur("trending_every", opts.TrendingEvery).
		Dur("keyword_every", opts.KeywordEvery).
		Msg("discovery worker started")

	for {
		wait := s.pass(ctx, st, opts)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("discovery worker stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// pass runs every strategy whose pool and cadence allow it and returns how
// long to sleep before the next pass
func (s *Svc) pass(ctx context.Context, st *loopState, opts RunOptions) time.Duration {
	now := s.now()

	if !now.Before(st.resume[domain.StrategyTracking]) {
		n, err := s.SweepTracking(ctx)
		s.noteOutcome(st, domain.StrategyTracking, n, err, now)
	}
	if !now.Before(st.resume[domain.StrategyTrending]) && !now.Before(st.nextTrending) {
		n, err := s.PullTrending(ctx)
		s.noteOutcome(st, domain.StrategyTrending, n, err, now)
		st.nextTrending = now.Add(opts.TrendingEvery)
	}
	if !now.Before(st.resume[domain.StrategyKeyword]) && !now.Before(st.nextKeyword) && len(s.cfg.Keywords) > 0 {
		n, err := s.SearchKeywords(ctx)
		s.noteOutcome(st, domain.StrategyKeyword, n, err, now)
		st.nextKeyword = now.Add(opts.KeywordEvery)
	}

	wait := opts.TickInterval
	if wake, idle := allIdle(st, now, len(s.cfg.Keywords) > 0); idle {
		wait = wake.Sub(now)
		s.log.Info().Time("resume_at", wake).Msg("quota exhausted for today")
	}
	return wait
}

// noteOutcome logs a strategy pass, a clean denial parks only that strategy
// until its pool refills at the UTC day boundary
func (s *Svc) noteOutcome(st *loopState, strategy domain.Strategy, ingested int, err error, now time.Time) {
	switch {
	case err == nil:
		if ingested > 0 {
			s.log.Info().Str("strategy", string(strategy)).Int("ingested", ingested).Msg("discovery pass")
		}
		delete(st.resume, strategy)
	case perr.IsCode(err, perr.ErrorCodeExhausted):
		wake := ptime.NextUTCDay(now)
		st.resume[strategy] = wake
		// a clean denial is routine, not an error
		s.log.Info().
			Str("strategy", string(strategy)).
			Int("ingested", ingested).
			Time("resume_at", wake).
			Msg("strategy pool exhausted")
	default:
		s.log.Error().Err(err).Str("strategy", string(strategy)).Msg("discovery pass failed")
	}
}

// allIdle reports whether every active strategy is parked and when the first
// one comes back
func allIdle(st *loopState, now time.Time, keywordsConfigured bool) (time.Time, bool) {
	var wake time.Time
	for _, strat := range domain.Strategies {
		if strat == domain.StrategyKeyword && !keywordsConfigured {
			continue
		}
		at := st.resume[strat]
		if !now.Before(at) {
			return time.Time{}, false
		}
		if wake.IsZero() || at.Before(wake) {
			wake = at
		}
	}
	return wake, true
}
