// Package repo provides the discovery intake repository implementation
package repo

import (
	"context"
	"strings"

	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/services/discovery/domain"
)

// Repo defines the discovery intake repository contract
type Repo interface {
	// InsertItem stores a candidate, skipping videos already known
	// itemID is empty when the video existed before this call
	InsertItem(ctx context.Context, c domain.Candidate) (itemID string, err error)

	// EnqueueScore puts an item on the scoring queue, idempotently
	EnqueueScore(ctx context.Context, itemID string) error
}

type (
	// PG is a Postgres discovery repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres discovery repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) InsertItem(ctx context.Context, c domain.Candidate) (string, error) {
	const sql = `
		INSERT INTO items (video_id, channel_id, title, strategy, keyword_hits, duration_secs, views, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (video_id) DO NOTHING
		RETURNING id
	`
	var pub any
	if !c.PublishedAt.IsZero() {
		pub = c.PublishedAt
	}
	var id string
	err := r.q.QueryRow(ctx, sql,
		c.VideoID, c.ChannelID, c.Title, string(c.Strategy),
		c.KeywordHits, c.DurationSecs, c.Views, pub,
	).Scan(&id)
	if err != nil {
		// DO NOTHING returns no row for duplicates
		if strings.Contains(err.Error(), "no rows") {
			return "", nil
		}
		return "", perr.FromPostgres(err, "discovery insert item")
	}
	return id, nil
}

func (r *queries) EnqueueScore(ctx context.Context, itemID string) error {
	const sql = `
		INSERT INTO score_queue (item_id)
		VALUES ($1)
		ON CONFLICT (item_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, sql, itemID); err != nil {
		return perr.FromPostgres(err, "discovery enqueue score")
	}
	return nil
}
