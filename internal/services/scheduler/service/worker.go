package service

import (
	"context"
	"time"

	ptime "tripwire/internal/platform/time"
)

// RunOptions controls the dispatch loop
type RunOptions struct {
	// Poll spaces passes when the queue is idle
	Poll time.Duration
	// RecoveryGrace is how long an open attempt may run before it counts
	// as abandoned
	RecoveryGrace time.Duration
	// RecoveryEvery spaces recovery sweeps after the startup one
	RecoveryEvery time.Duration
}

// Run recovers abandoned work, then polls the scan queue until ctx is done
// a budget denial parks the loop until the next UTC day
func (s *Svc) Run(ctx context.Context, opts RunOptions) error {
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Second
	}
	if opts.RecoveryGrace <= 0 {
		opts.RecoveryGrace = 30 * time.Minute
	}
	if opts.RecoveryEvery <= 0 {
		opts.RecoveryEvery = 10 * time.Minute
	}

	// startup sweep reclaims whatever the previous instance left behind
	if n, err := s.Recover(ctx, opts.RecoveryGrace, 1000); err != nil {
		s.log.Error().Err(err).Msg("startup recovery failed")
	} else if n > 0 {
		s.log.Warn().Int("recovered", n).Msg("startup recovery reclaimed attempts")
	}

	s.log.Info().Dur("poll", opts.Poll).Msg("scheduler worker started")
	nextRecovery := s.now().Add(opts.RecoveryEvery)

	for {
		now := s.now()
		if !now.Before(nextRecovery) {
			if _, err := s.Recover(ctx, opts.RecoveryGrace, 1000); err != nil {
				s.log.Error().Err(err).Msg("recovery sweep failed")
			}
			nextRecovery = now.Add(opts.RecoveryEvery)
		}

		handled, paused, err := s.ProcessOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("dispatch pass failed")
		}

		wait := opts.Poll
		switch {
		case paused:
			// deferred tasks are invisible until tomorrow anyway, so waking
			// early only costs an empty pass; keep recovery sweeps alive
			wake := ptime.NextUTCDay(now)
			wait = wake.Sub(now)
			if wait > opts.RecoveryEvery {
				wait = opts.RecoveryEvery
			}
			s.log.Info().Time("resume_at", wake).Msg("analysis budget exhausted for today")
		case handled > 0 && err == nil:
			wait = 0
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler worker stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
