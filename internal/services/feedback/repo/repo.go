// Package repo provides the feedback queue repository implementation
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

// Verdict is one claimed analysis outcome awaiting counter updates
type Verdict struct {
	ID        string
	ItemID    string
	ChannelID string
	Violation bool
	Attempts  int
}

// Repo defines the feedback queue contract
type Repo interface {
	// LeaseDue claims up to limit due verdicts and pushes their retry horizon out
	LeaseDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]Verdict, error)

	// Ack removes a folded verdict
	Ack(ctx context.Context, id string) error

	// Nack counts a failed attempt and schedules the retry
	Nack(ctx context.Context, id string, cause string, nextAttemptAt time.Time) error

	// Drop removes a verdict that can never be folded
	Drop(ctx context.Context, id string) error

	// RescorableItems lists a channel's items still ahead of analysis
	RescorableItems(ctx context.Context, channelID string, limit int) ([]itemdomain.Item, error)

	// UpdateRisk rewrites an item's score and its queued task in place
	// items that moved past scoring are left alone
	UpdateRisk(ctx context.Context, itemID string, risk, density float64, now time.Time) error

	// ItemRef resolves a video id to its item and channel
	ItemRef(ctx context.Context, videoID string) (Ref, error)

	// EnqueueVerdict appends a verdict for the worker to fold
	EnqueueVerdict(ctx context.Context, itemID, channelID string, violation bool) error
}

// Ref is the item identity a pushed verdict attaches to
type Ref struct {
	ItemID    string
	ChannelID string
}

type (
	// PG is a Postgres feedback queue repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres feedback queue repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) LeaseDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]Verdict, error) {
	const sql = `
		UPDATE feedback_queue
			SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM feedback_queue
			WHERE next_attempt_at <= $1
			ORDER BY enqueued_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, item_id, channel_id, violation, attempts
	`
	out, err := store.Many(ctx, r.q, scanVerdict, sql, now, leaseUntil, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "feedback queue lease")
	}
	return out, nil
}

func (r *queries) Ack(ctx context.Context, id string) error {
	const sql = `DELETE FROM feedback_queue WHERE id = $1`
	if _, err := r.q.Exec(ctx, sql, id); err != nil {
		return perr.FromPostgres(err, "feedback queue ack")
	}
	return nil
}

func (r *queries) Nack(ctx context.Context, id, cause string, nextAttemptAt time.Time) error {
	const sql = `
		UPDATE feedback_queue
			SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE id = $1
	`
	if _, err := r.q.Exec(ctx, sql, id, nextAttemptAt, cause); err != nil {
		return perr.FromPostgres(err, "feedback queue nack")
	}
	return nil
}

func (r *queries) Drop(ctx context.Context, id string) error { return r.Ack(ctx, id) }

func (r *queries) RescorableItems(ctx context.Context, channelID string, limit int) ([]itemdomain.Item, error) {
	const sql = `
		SELECT id, video_id, channel_id, title, strategy, keyword_hits, duration_secs, views,
			published_at, risk_score, status, last_error, discovered_at, scored_at, updated_at
		FROM items
		WHERE channel_id = $1 AND status IN ('scored', 'queued')
		ORDER BY discovered_at ASC
		LIMIT $2
	`
	return store.Many(ctx, r.q, itemrepo.ScanItem, sql, channelID, limit)
}

func (r *queries) UpdateRisk(ctx context.Context, itemID string, risk, density float64, now time.Time) error {
	const item = `
		UPDATE items
			SET risk_score = $2, updated_at = $3
		WHERE id = $1 AND status IN ('scored', 'queued')
	`
	if _, err := r.q.Exec(ctx, item, itemID, risk, now); err != nil {
		return perr.FromPostgres(err, "rescore item")
	}
	// the queued task is rewritten, never duplicated
	const task = `
		UPDATE scan_queue
			SET priority = $2, sampling_density = $3
		WHERE item_id = $1
	`
	if _, err := r.q.Exec(ctx, task, itemID, risk, density); err != nil {
		return perr.FromPostgres(err, "rescore scan task")
	}
	return nil
}

func (r *queries) ItemRef(ctx context.Context, videoID string) (Ref, error) {
	const sql = `
		SELECT id, channel_id
		FROM items
		WHERE video_id = $1
	`
	return store.One(ctx, r.q, func(row store.Row) (Ref, error) {
		var ref Ref
		err := row.Scan(&ref.ItemID, &ref.ChannelID)
		return ref, err
	}, sql, videoID)
}

func (r *queries) EnqueueVerdict(ctx context.Context, itemID, channelID string, violation bool) error {
	const sql = `
		INSERT INTO feedback_queue (item_id, channel_id, violation)
		VALUES ($1, $2, $3)
	`
	if _, err := r.q.Exec(ctx, sql, itemID, channelID, violation); err != nil {
		return perr.FromPostgres(err, "enqueue verdict")
	}
	return nil
}

func scanVerdict(row store.Row) (Verdict, error) {
	var v Verdict
	err := row.Scan(&v.ID, &v.ItemID, &v.ChannelID, &v.Violation, &v.Attempts)
	return v, err
}
