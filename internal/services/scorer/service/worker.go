package service

import (
	"context"
	"time"
)

// Run polls the scoring queue until ctx is done
// a busy pass rolls straight into the next one, idle passes sleep poll
func (s *Svc) Run(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	s.log.Info().Dur("poll", poll).Msg("scorer worker started")

	for {
		n, err := s.ProcessOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("scoring pass failed")
		}

		wait := poll
		if n > 0 && err == nil {
			wait = 0
		}
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scorer worker stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
