// Package repo provides the scoring queue repository implementation
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

// Lease is one claimed scoring task
type Lease struct {
	ItemID   string
	Attempts int
}

// Repo defines the scoring queue contract
type Repo interface {
	// LeaseDue claims up to limit due tasks and pushes their retry horizon out
	// claimed rows stay invisible to other workers until the lease expires
	LeaseDue(ctx context.Context, now time.Time, leaseUntil time.Time, limit int) ([]Lease, error)

	// LoadItem reads the item under scoring
	LoadItem(ctx context.Context, itemID string) (itemdomain.Item, error)

	// MarkScoredAndQueue attaches the score and moves the item onto the scan
	// queue in one shot, skipping items no longer in a scorable state
	MarkScoredAndQueue(ctx context.Context, itemID string, risk float64, density float64, now time.Time) (bool, error)

	// Ack removes a finished task from the queue
	Ack(ctx context.Context, itemID string) error

	// Nack counts a failed attempt and schedules the retry
	Nack(ctx context.Context, itemID string, cause string, nextAttemptAt time.Time) error

	// DeadLetter parks the item for manual triage and drops the task
	DeadLetter(ctx context.Context, itemID string, cause string) error
}

type (
	// PG is a Postgres scoring queue repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres scoring queue repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) LeaseDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]Lease, error) {
	const sql = `
		UPDATE score_queue
			SET next_attempt_at = $2
		WHERE item_id IN (
			SELECT item_id FROM score_queue
			WHERE next_attempt_at <= $1
			ORDER BY enqueued_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING item_id, attempts
	`
	out, err := store.Many(ctx, r.q, scanLease, sql, now, leaseUntil, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "score queue lease")
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

func (r *queries) MarkScoredAndQueue(ctx context.Context, itemID string, risk, density float64, now time.Time) (bool, error) {
	const mark = `
		UPDATE items
			SET risk_score = $2, status = 'queued', scored_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('discovered', 'scored')
	`
	tag, err := r.q.Exec(ctx, mark, itemID, risk, now)
	if err != nil {
		return false, perr.FromPostgres(err, "scorer mark scored")
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	// in-place upsert keeps one task per item no matter how often it is rescored
	const enqueue = `
		INSERT INTO scan_queue (item_id, priority, sampling_density)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id) DO UPDATE
			SET priority = EXCLUDED.priority, sampling_density = EXCLUDED.sampling_density
	`
	if _, err := r.q.Exec(ctx, enqueue, itemID, risk, density); err != nil {
		return false, perr.FromPostgres(err, "scorer enqueue scan")
	}
	return true, nil
}

func (r *queries) Ack(ctx context.Context, itemID string) error {
	const sql = `DELETE FROM score_queue WHERE item_id = $1`
	if _, err := r.q.Exec(ctx, sql, itemID); err != nil {
		return perr.FromPostgres(err, "score queue ack")
	}
	return nil
}

func (r *queries) Nack(ctx context.Context, itemID, cause string, nextAttemptAt time.Time) error {
	const sql = `
		UPDATE score_queue
			SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE item_id = $1
	`
	if _, err := r.q.Exec(ctx, sql, itemID, nextAttemptAt, cause); err != nil {
		return perr.FromPostgres(err, "score queue nack")
	}
	return nil
}

func (r *queries) DeadLetter(ctx context.Context, itemID, cause string) error {
	const park = `
		UPDATE items
			SET status = 'dead_lettered', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, park, itemID, cause); err != nil {
		return perr.FromPostgres(err, "scorer dead letter")
	}
	return r.Ack(ctx, itemID)
}

func scanLease(row store.Row) (Lease, error) {
	var l Lease
	err := row.Scan(&l.ItemID, &l.Attempts)
	return l, err
}
