// Package repo provides the scan queue and attempt log repository implementation
package repo

import (
	"context"
	"time"

	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	itemdomain "tripwire/internal/services/items/domain"
	itemrepo "tripwire/internal/services/items/repo"
)

// Task is one claimed scan dispatch
type Task struct {
	ItemID   string
	Priority float64
	Density  float64
	Attempts int
}

// StaleAttempt is an in-flight attempt left behind by a dead worker
type StaleAttempt struct {
	ID            string
	ItemID        string
	ReservationID *string
	StartedAt     time.Time
}

// Repo defines the scan dispatch contract
type Repo interface {
	// LeaseDue claims up to limit due tasks, highest priority first
	LeaseDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]Task, error)

	// LoadItem reads the item under dispatch
	LoadItem(ctx context.Context, itemID string) (itemdomain.Item, error)

	// OpenAttempt records the start of an analysis call
	OpenAttempt(ctx context.Context, itemID string, reservationID *string, now time.Time) (string, error)

	// MarkAnalyzing flips the item into its in-flight state
	// false when the item already moved elsewhere
	MarkAnalyzing(ctx context.Context, itemID string, now time.Time) (bool, error)

	// FinishAttempt closes an open attempt, idempotently
	FinishAttempt(ctx context.Context, attemptID, outcome string, cost float64, note string, now time.Time) error

	// FinishItem lands the item in a terminal or retryable state
	FinishItem(ctx context.Context, itemID string, status itemdomain.Status, lastError string, now time.Time) error

	// Ack removes a finished task from the queue
	Ack(ctx context.Context, itemID string) error

	// Nack counts a failed attempt and schedules the retry
	Nack(ctx context.Context, itemID string, cause string, nextAttemptAt time.Time) error

	// Defer pushes a task out without burning an attempt, used on budget denial
	Defer(ctx context.Context, itemID string, until time.Time) error

	// EnqueueFeedback hands the verdict to the feedback stage
	EnqueueFeedback(ctx context.Context, itemID, channelID string, violation bool) error

	// StaleAttempts lists open attempts older than the grace cutoff
	StaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]StaleAttempt, error)

	// Requeue revives an interrupted item, resetting its scan task in place
	// or routing it back through scoring when the task is gone
	Requeue(ctx context.Context, itemID string, now time.Time) error
}

type (
	// PG is a Postgres scan dispatch repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres scan dispatch repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) LeaseDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]Task, error) {
	const sql = `
		UPDATE scan_queue
			SET next_attempt_at = $2
		WHERE item_id IN (
			SELECT item_id FROM scan_queue
			WHERE next_attempt_at <= $1
			ORDER BY priority DESC, enqueued_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING item_id, priority, COALESCE(sampling_density, 0), attempts
	`
	out, err := store.Many(ctx, r.q, scanTask, sql, now, leaseUntil, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "scan queue lease")
	}
	return out, nil
}

func (r *queries) LoadItem(ctx context.Context, itemID string) (itemdomain.Item, error) {
	const sql = `
		SELECT id, video_id, channel_id, title, strategy, keyword_hits, duration_secs, views,
			published_at, risk_score, status, last_error, discovered_at, scored_at, updated_at
		FROM items
		WHERE id = $1
	`
	return store.One(ctx, r.q, itemrepo.ScanItem, sql, itemID)
}

func (r *queries) OpenAttempt(ctx context.Context, itemID string, reservationID *string, now time.Time) (string, error) {
	const sql = `
		INSERT INTO scan_attempts (item_id, reservation_id, started_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id string
	if err := r.q.QueryRow(ctx, sql, itemID, reservationID, now).Scan(&id); err != nil {
		return "", perr.FromPostgres(err, "open scan attempt")
	}
	return id, nil
}

func (r *queries) MarkAnalyzing(ctx context.Context, itemID string, now time.Time) (bool, error) {
	const sql = `
		UPDATE items
			SET status = 'analyzing', updated_at = $2
		WHERE id = $1 AND status IN ('queued', 'scored')
	`
	tag, err := r.q.Exec(ctx, sql, itemID, now)
	if err != nil {
		return false, perr.FromPostgres(err, "mark analyzing")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) FinishAttempt(ctx context.Context, attemptID, outcome string, cost float64, note string, now time.Time) error {
	// the finished_at guard makes repeats and recovery races no-ops
	const sql = `
		UPDATE scan_attempts
			SET finished_at = $2, outcome = $3, cost = $4, note = NULLIF($5, '')
		WHERE id = $1 AND finished_at IS NULL
	`
	if _, err := r.q.Exec(ctx, sql, attemptID, now, outcome, cost, note); err != nil {
		return perr.FromPostgres(err, "finish scan attempt")
	}
	return nil
}

func (r *queries) FinishItem(ctx context.Context, itemID string, status itemdomain.Status, lastError string, now time.Time) error {
	const sql = `
		UPDATE items
			SET status = $2, last_error = NULLIF($3, ''), updated_at = $4
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, sql, itemID, string(status), lastError, now); err != nil {
		return perr.FromPostgres(err, "finish item")
	}
	return nil
}

func (r *queries) Ack(ctx context.Context, itemID string) error {
	const sql = `DELETE FROM scan_queue WHERE item_id = $1`
	if _, err := r.q.Exec(ctx, sql, itemID); err != nil {
		return perr.FromPostgres(err, "scan queue ack")
	}
	return nil
}

func (r *queries) Nack(ctx context.Context, itemID, cause string, nextAttemptAt time.Time) error {
	const sql = `
		UPDATE scan_queue
			SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE item_id = $1
	`
	if _, err := r.q.Exec(ctx, sql, itemID, nextAttemptAt, cause); err != nil {
		return perr.FromPostgres(err, "scan queue nack")
	}
	return nil
}

func (r *queries) Defer(ctx context.Context, itemID string, until time.Time) error {
	// attempts stay untouched, a budget denial is not the task's fault
	const sql = `
		UPDATE scan_queue
			SET next_attempt_at = $2
		WHERE item_id = $1
	`
	if _, err := r.q.Exec(ctx, sql, itemID, until); err != nil {
		return perr.FromPostgres(err, "scan queue defer")
	}
	return nil
}

func (r *queries) EnqueueFeedback(ctx context.Context, itemID, channelID string, violation bool) error {
	const sql = `
		INSERT INTO feedback_queue (item_id, channel_id, violation)
		VALUES ($1, $2, $3)
	`
	if _, err := r.q.Exec(ctx, sql, itemID, channelID, violation); err != nil {
		return perr.FromPostgres(err, "enqueue feedback")
	}
	return nil
}

func (r *queries) StaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]StaleAttempt, error) {
	const sql = `
		SELECT id, item_id, reservation_id, started_at
		FROM scan_attempts
		WHERE finished_at IS NULL AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2
	`
	out, err := store.Many(ctx, r.q, scanStale, sql, cutoff, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "stale scan attempts")
	}
	return out, nil
}

func (r *queries) Requeue(ctx context.Context, itemID string, now time.Time) error {
	// the scan task usually still exists, recovery only resets its visibility
	const reset = `
		UPDATE scan_queue
			SET next_attempt_at = $2
		WHERE item_id = $1
	`
	tag, err := r.q.Exec(ctx, reset, itemID, now)
	if err != nil {
		return perr.FromPostgres(err, "recovery requeue")
	}
	if tag.RowsAffected() == 0 {
		// the task is gone, route the item back through scoring so its
		// priority and density are rebuilt
		const rescore = `
			INSERT INTO score_queue (item_id)
			VALUES ($1)
			ON CONFLICT (item_id) DO NOTHING
		`
		if _, err := r.q.Exec(ctx, rescore, itemID); err != nil {
			return perr.FromPostgres(err, "recovery rescore")
		}
	}
	const back = `
		UPDATE items
			SET status = 'scored', updated_at = $2
		WHERE id = $1 AND status = 'analyzing'
	`
	if _, err := r.q.Exec(ctx, back, itemID, now); err != nil {
		return perr.FromPostgres(err, "recovery reset item")
	}
	return nil
}

func scanTask(row store.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ItemID, &t.Priority, &t.Density, &t.Attempts)
	return t, err
}

func scanStale(row store.Row) (StaleAttempt, error) {
	var s StaleAttempt
	err := row.Scan(&s.ID, &s.ItemID, &s.ReservationID, &s.StartedAt)
	return s, err
}
