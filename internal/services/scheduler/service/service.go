// Package service implements the analysis dispatch stage
package service

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tripwire/internal/adapters/vision"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	pstrings "tripwire/internal/platform/strings"
	ptime "tripwire/internal/platform/time"
	auditdomain "tripwire/internal/services/audit/domain"
	itemdomain "tripwire/internal/services/items/domain"
	ledgerdomain "tripwire/internal/services/ledger/domain"
	"tripwire/internal/services/scheduler/repo"
)

// Vision is the scheduler-facing slice of the analysis client
type Vision interface {
	Analyze(ctx context.Context, req vision.Request) (vision.Result, error)
}

// Config carries dispatch tunables
type Config struct {
	// BatchSize caps leased tasks per pass
	BatchSize int
	// Concurrency bounds in-flight analysis calls
	Concurrency int
	// LeaseFor hides claimed tasks from other workers
	LeaseFor time.Duration
	// MaxAttempts dead letters a task after this many transient failures
	MaxAttempts int
	// RetryBase seeds the exponential retry backoff
	RetryBase time.Duration

	// CostPerSampledSecond converts duration times density into currency
	CostPerSampledSecond float64

	// Audit receives best-effort scan events, nil disables
	Audit auditdomain.RecorderPort
}

// Svc leases scan tasks and drives analysis calls under budget
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	ledger ledgerdomain.LedgerPort
	vision Vision
	cfg    Config
	log    logger.Logger
	audit  auditdomain.RecorderPort
	now    func() time.Time
}

// New constructs the scheduler service
func New(deps modkit.Deps, ledger ledgerdomain.LedgerPort, vis Vision, cfg Config) *Svc {
	if deps.PG == nil {
		panic("scheduler.Service requires a non nil TxRunner")
	}
	if ledger == nil {
		panic("scheduler.Service requires a ledger port")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Minute
	}
	if cfg.CostPerSampledSecond <= 0 {
		cfg.CostPerSampledSecond = 0.10
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
		ledger: ledger,
		vision: vis,
		cfg:    cfg,
		log:    *logger.Named("scheduler"),
		audit:  audit,
		now:    time.Now,
	}
}

// EstimateCost prices an analysis call before reserving budget
func (s *Svc) EstimateCost(durationSecs int, density float64) float64 {
	return float64(durationSecs) * density * s.cfg.CostPerSampledSecond
}

// ProcessOnce leases one batch and dispatches it through the worker pool
// handled counts tasks taken, paused is set when the analysis pool denied
func (s *Svc) ProcessOnce(ctx context.Context) (handled int, paused bool, err error) {
	now := s.now()
	tasks, err := s.Repo.LeaseDue(ctx, now, now.Add(s.cfg.LeaseFor), s.cfg.BatchSize)
	if err != nil {
		return 0, false, err
	}
	if len(tasks) == 0 {
		return 0, false, nil
	}

	var denied atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			if err := s.dispatchOne(gctx, task); err != nil {
				if perr.IsCode(err, perr.ErrorCodeExhausted) {
					denied.Store(true)
					return nil
				}
				s.log.Error().Err(err).Str("item_id", task.ItemID).Msg("dispatch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(tasks), denied.Load(), nil
}

// dispatchOne runs a single task through reserve, analyze, settle
func (s *Svc) dispatchOne(ctx context.Context, task repo.Task) error {
	now := s.now()

	item, err := s.Repo.LoadItem(ctx, task.ItemID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return s.Repo.Ack(ctx, task.ItemID)
		}
		return err
	}
	if item.Status.Terminal() {
		return s.Repo.Ack(ctx, task.ItemID)
	}

	estimate := s.EstimateCost(item.DurationSecs, task.Density)
	res, err := s.ledger.Reserve(ctx, ledgerdomain.ResourceAnalysis, estimate)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeExhausted) {
			// push the untouched task to the next budget day
			if derr := s.Repo.Defer(ctx, task.ItemID, ptime.NextUTCDay(now)); derr != nil {
				return derr
			}
			metrics.DispatchesTotal.WithLabelValues("deferred").Inc()
			return err
		}
		if perr.IsCode(err, perr.ErrorCodeInvalidArgument) || perr.IsCode(err, perr.ErrorCodeValidation) {
			// an unpriceable estimate never becomes priceable, park the item
			// instead of retrying every lease cycle
			metrics.DispatchesTotal.WithLabelValues("dead_lettered").Inc()
			msg := pstrings.Truncate(err.Error(), 512)
			s.log.Warn().Err(err).Str("item_id", task.ItemID).Float64("estimate", estimate).Msg("estimate rejected, item dead lettered")
			return s.db.Tx(ctx, func(q repokit.Queryer) error {
				r := s.binder.Bind(q)
				if ferr := r.FinishItem(ctx, task.ItemID, itemdomain.StatusDeadLettered, msg, now); ferr != nil {
					return ferr
				}
				return r.Ack(ctx, task.ItemID)
			})
		}
		return err
	}

	// once budget is held, settlement must land even while the worker drains
	sctx := context.WithoutCancel(ctx)

	var attemptID string
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		ok, err := r.MarkAnalyzing(ctx, task.ItemID, now)
		if err != nil {
			return err
		}
		if !ok {
			return perr.Conflictf("item %s left the queue", task.ItemID)
		}
		attemptID, err = r.OpenAttempt(ctx, task.ItemID, &res.ID, now)
		return err
	})
	if err != nil {
		if rerr := s.ledger.Release(sctx, res.ID); rerr != nil {
			s.log.Warn().Err(rerr).Str("reservation_id", res.ID).Msg("release after claim failure")
		}
		if perr.IsCode(err, perr.ErrorCodeConflict) {
			// another worker or a stale crash owns the item, the lease keeps
			// the task parked until its owner settles or recovery steps in
			s.log.Debug().Str("item_id", task.ItemID).Msg("item already claimed, leaving task leased")
			return nil
		}
		return err
	}

	result, err := s.vision.Analyze(ctx, vision.Request{
		VideoID:         item.VideoID,
		SamplingDensity: task.Density,
	})
	if err != nil {
		return s.settleFailure(sctx, task, item, res.ID, attemptID, err)
	}
	return s.settleVerdict(sctx, task, item, res.ID, attemptID, result)
}

// settleVerdict books the actual spend and lands the terminal state
func (s *Svc) settleVerdict(ctx context.Context, task repo.Task, item itemdomain.Item, reservationID, attemptID string, result vision.Result) error {
	now := s.now()

	if err := s.ledger.Commit(ctx, reservationID, result.Cost); err != nil {
		return err
	}

	outcome := "clean"
	if result.Violation {
		outcome = "violation"
	}
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if err := r.FinishAttempt(ctx, attemptID, outcome, result.Cost, "", now); err != nil {
			return err
		}
		if err := r.FinishItem(ctx, task.ItemID, itemdomain.StatusAnalyzed, "", now); err != nil {
			return err
		}
		if err := r.Ack(ctx, task.ItemID); err != nil {
			return err
		}
		return r.EnqueueFeedback(ctx, task.ItemID, item.ChannelID, result.Violation)
	})
	if err != nil {
		return err
	}

	metrics.DispatchesTotal.WithLabelValues(outcome).Inc()
	s.audit.Scan(ctx, auditdomain.ScanEvent{
		At: now, ItemID: task.ItemID, ChannelID: item.ChannelID,
		Outcome: outcome, Cost: result.Cost, RiskScore: task.Priority, Density: task.Density,
	})
	s.log.Info().
		Str("item_id", task.ItemID).
		Str("outcome", outcome).
		Float64("cost", result.Cost).
		Msg("analysis settled")
	return nil
}

// settleFailure refunds the hold and routes retry versus terminal failure
func (s *Svc) settleFailure(ctx context.Context, task repo.Task, item itemdomain.Item, reservationID, attemptID string, cause error) error {
	now := s.now()
	// last_error and attempt notes stay bounded even for chatty upstream errors
	msg := pstrings.Truncate(cause.Error(), 512)

	if err := s.ledger.Release(ctx, reservationID); err != nil {
		s.log.Warn().Err(err).Str("reservation_id", reservationID).Msg("release after analysis failure")
	}
	if err := s.Repo.FinishAttempt(ctx, attemptID, "error", 0, msg, now); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("finish attempt after failure")
	}

	permanent := perr.IsCode(cause, perr.ErrorCodeValidation) || perr.IsCode(cause, perr.ErrorCodeInvalidArgument)
	attempt := task.Attempts + 1

	switch {
	case permanent:
		metrics.DispatchesTotal.WithLabelValues("failed").Inc()
		s.log.Warn().Err(cause).Str("item_id", task.ItemID).Msg("analysis rejected permanently")
		return s.db.Tx(ctx, func(q repokit.Queryer) error {
			r := s.binder.Bind(q)
			if err := r.FinishItem(ctx, task.ItemID, itemdomain.StatusFailed, msg, now); err != nil {
				return err
			}
			return r.Ack(ctx, task.ItemID)
		})

	case attempt >= s.cfg.MaxAttempts:
		metrics.DispatchesTotal.WithLabelValues("dead_lettered").Inc()
		s.log.Error().Err(cause).Str("item_id", task.ItemID).Int("attempts", attempt).Msg("analysis retries exhausted")
		return s.db.Tx(ctx, func(q repokit.Queryer) error {
			r := s.binder.Bind(q)
			if err := r.FinishItem(ctx, task.ItemID, itemdomain.StatusDeadLettered, msg, now); err != nil {
				return err
			}
			return r.Ack(ctx, task.ItemID)
		})

	default:
		metrics.QueueRetries.WithLabelValues("scan").Inc()
		// the item goes back to queued so recovery and readers see the truth
		if err := s.Repo.FinishItem(ctx, task.ItemID, itemdomain.StatusQueued, msg, now); err != nil {
			return err
		}
		return s.Repo.Nack(ctx, task.ItemID, msg, now.Add(backoffFor(s.cfg.RetryBase, attempt)))
	}
}

// backoffFor doubles per attempt, capped at thirty minutes
func backoffFor(base time.Duration, attempt int) time.Duration {
	const limit = 30 * time.Minute
	d := base << uint(attempt-1)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}
