// Package service implements the budget ledger workflows
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	ptime "tripwire/internal/platform/time"
	auditdomain "tripwire/internal/services/audit/domain"
	"tripwire/internal/services/ledger/domain"
	"tripwire/internal/services/ledger/repo"
)

// Config carries the daily allocations per resource
type Config struct {
	// Allocations maps resource name to its daily budget
	// day rows are created with these amounts on first touch
	Allocations map[string]float64

	// Audit receives best-effort ledger events, nil disables
	Audit auditdomain.RecorderPort
}

// Svc implements domain.LedgerPort and domain.ReaderPort
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	cfg    Config
	log    logger.Logger
	audit  auditdomain.RecorderPort
	now    func() time.Time
}

// New constructs the ledger service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("ledger.Service requires a non nil TxRunner")
	}
	if len(cfg.Allocations) == 0 {
		panic("ledger.Service requires at least one allocation")
	}
	audit := cfg.Audit
	if audit == nil {
		audit = auditdomain.Noop{}
	}
	b := repo.NewPG()
	return &Svc{
		Repo:   b.Bind(deps.PG),
		binder: b,
		db:     deps.PG,
		cfg:    cfg,
		log:    *logger.Named("ledger"),
		audit:  audit,
		now:    time.Now,
	}
}

// Reserve holds amount against the current UTC day's pool for resource
// denial is domain.ErrExhausted, never an accounting mutation
func (s *Svc) Reserve(ctx context.Context, resource string, amount float64) (domain.Reservation, error) {
	var zero domain.Reservation
	if amount <= 0 {
		return zero, perr.InvalidArgf("reserve amount must be positive, got %v", amount)
	}
	alloc, ok := s.cfg.Allocations[resource]
	if !ok {
		return zero, perr.InvalidArgf("unknown budget resource %q", resource)
	}

	day := ptime.UTCDay(s.now())
	res := domain.Reservation{
		ID:       uuid.NewString(),
		Day:      day,
		Resource: resource,
		Amount:   amount,
		State:    domain.StateHeld,
	}

	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if err := r.EnsureDay(ctx, day, resource, alloc); err != nil {
			return err
		}
		admitted, err := r.TryReserve(ctx, day, resource, amount)
		if err != nil {
			return err
		}
		if !admitted {
			return domain.ErrExhausted
		}
		return r.InsertReservation(ctx, res)
	})
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeExhausted) {
			metrics.ReservationsTotal.WithLabelValues(resource, "denied").Inc()
			s.audit.Ledger(ctx, auditdomain.LedgerEvent{
				At: s.now(), Day: day.Format(time.DateOnly), Resource: resource,
				Action: "denied", Amount: amount,
			})
			return zero, domain.ErrExhausted
		}
		return zero, err
	}

	metrics.ReservationsTotal.WithLabelValues(resource, "admitted").Inc()
	s.audit.Ledger(ctx, auditdomain.LedgerEvent{
		At: s.now(), Day: day.Format(time.DateOnly), Resource: resource,
		Action: "reserved", Amount: amount, ReservationID: res.ID,
	})
	return res, nil
}

// Commit books the actual spend for a held reservation and refunds the rest
// repeats are no-ops since only the held state transitions
func (s *Svc) Commit(ctx context.Context, reservationID string, actual float64) error {
	if actual < 0 {
		return perr.InvalidArgf("commit actual must be non-negative, got %v", actual)
	}

	var settled domain.Reservation
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		res, ok, err := r.TakeHeld(ctx, reservationID, domain.StateCommitted)
		if err != nil {
			return err
		}
		if !ok {
			return nil // already settled, at-least-once repeat
		}
		settled = res
		return r.SettleCommit(ctx, res, actual)
	})
	if err != nil {
		// a check violation here means spend would exceed the allocation,
		// which only happens when actual overshoots the hold. Surface loudly
		if perr.IsCode(err, perr.ErrorCodeValidation) {
			s.log.Error().
				Str("reservation_id", reservationID).
				Float64("actual", actual).
				Msg("ledger overspend rejected, this is a consistency bug")
			return perr.Wrapf(err, perr.ErrorCodeConflict, "ledger overspend on commit")
		}
		return err
	}
	if settled.ID == "" {
		return nil
	}

	metrics.BudgetCommitted.WithLabelValues(settled.Resource).Add(actual)
	s.audit.Ledger(ctx, auditdomain.LedgerEvent{
		At: s.now(), Day: settled.Day.Format(time.DateOnly), Resource: settled.Resource,
		Action: "committed", Amount: actual, ReservationID: settled.ID,
	})
	return nil
}

// Release refunds a held reservation without spending
// repeats are no-ops since only the held state transitions
func (s *Svc) Release(ctx context.Context, reservationID string) error {
	var settled domain.Reservation
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		res, ok, err := r.TakeHeld(ctx, reservationID, domain.StateReleased)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		settled = res
		return r.SettleRelease(ctx, res)
	})
	if err != nil || settled.ID == "" {
		return err
	}

	s.audit.Ledger(ctx, auditdomain.LedgerEvent{
		At: s.now(), Day: settled.Day.Format(time.DateOnly), Resource: settled.Resource,
		Action: "released", Amount: settled.Amount, ReservationID: settled.ID,
	})
	return nil
}

// Remaining reports the current day's reservable headroom for resource
// a day untouched so far reports the full configured allocation
func (s *Svc) Remaining(ctx context.Context, resource string) (float64, error) {
	alloc, ok := s.cfg.Allocations[resource]
	if !ok {
		return 0, perr.InvalidArgf("unknown budget resource %q", resource)
	}
	st, err := s.Repo.StateFor(ctx, ptime.UTCDay(s.now()), resource)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return alloc, nil
		}
		return 0, err
	}
	return st.Remaining(), nil
}

// StateFor reads one ledger row for the admin API
func (s *Svc) StateFor(ctx context.Context, day time.Time, resource string) (domain.State, error) {
	return s.Repo.StateFor(ctx, ptime.UTCDay(day), resource)
}

// StatesOn reads all ledger rows for a day for the admin API
func (s *Svc) StatesOn(ctx context.Context, day time.Time) ([]domain.State, error) {
	return s.Repo.StatesOn(ctx, ptime.UTCDay(day))
}
