package service

import (
	"context"
	"time"

	"tripwire/internal/platform/metrics"
	auditdomain "tripwire/internal/services/audit/domain"
)

const recoveryNote = "instance terminated mid-processing"

// Recover sweeps attempts abandoned by dead workers back onto the queue
// every step is conditional, so concurrent supervisors and late finishers
// cannot double-settle an attempt
func (s *Svc) Recover(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if grace <= 0 {
		grace = 30 * time.Minute
	}
	if limit <= 0 {
		limit = 100
	}
	now := s.now()

	stale, err := s.Repo.StaleAttempts(ctx, now.Add(-grace), limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, att := range stale {
		// closing the attempt first wins the race against a late finisher
		if err := s.Repo.FinishAttempt(ctx, att.ID, "failed", 0, recoveryNote, now); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", att.ID).Msg("recovery close failed")
			continue
		}
		if att.ReservationID != nil {
			if err := s.ledger.Release(ctx, *att.ReservationID); err != nil {
				s.log.Warn().Err(err).Str("reservation_id", *att.ReservationID).Msg("recovery release failed")
			}
		}
		if err := s.Repo.Requeue(ctx, att.ItemID, now); err != nil {
			s.log.Warn().Err(err).Str("item_id", att.ItemID).Msg("recovery requeue failed")
			continue
		}

		recovered++
		metrics.RecoveredAttempts.Inc()
		s.audit.Scan(ctx, auditdomain.ScanEvent{
			At: now, ItemID: att.ItemID,
			Outcome: "recovered", Note: recoveryNote,
		})
		s.log.Warn().
			Str("item_id", att.ItemID).
			Str("attempt_id", att.ID).
			Time("started_at", att.StartedAt).
			Msg("abandoned attempt recovered")
	}
	return recovered, nil
}
