// Package repo provides the item read model repository implementation
package repo

import (
	"context"

	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	"tripwire/internal/services/items/domain"
)

// Repo defines the item read model contract
type Repo interface {
	Get(ctx context.Context, id string) (domain.Item, error)
	ByVideo(ctx context.Context, videoID string) (domain.Item, error)
	ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Item, error)
	CountByStatus(ctx context.Context, status domain.Status) (int, error)
}

type (
	// PG is a Postgres item read model repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres item read model repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const itemCols = `id, video_id, channel_id, title, strategy, keyword_hits, duration_secs, views,
	published_at, risk_score, status, last_error, discovered_at, scored_at, updated_at`

func (r *queries) Get(ctx context.Context, id string) (domain.Item, error) {
	const sql = `SELECT ` + itemCols + ` FROM items WHERE id = $1`
	return store.One(ctx, r.q, ScanItem, sql, id)
}

func (r *queries) ByVideo(ctx context.Context, videoID string) (domain.Item, error) {
	const sql = `SELECT ` + itemCols + ` FROM items WHERE video_id = $1`
	return store.One(ctx, r.q, ScanItem, sql, videoID)
}

func (r *queries) ListByStatus(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Item, error) {
	const sql = `
		SELECT ` + itemCols + `
		FROM items
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	return store.Many(ctx, r.q, ScanItem, sql, string(status), limit, offset)
}

func (r *queries) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	const sql = `SELECT COUNT(*) FROM items WHERE status = $1`
	n, err := store.Scalar[int](ctx, r.q, sql, string(status))
	if err != nil {
		return 0, perr.FromPostgres(err, "items count by status")
	}
	return n, nil
}

// ScanItem maps one items row, shared with the pipeline repos
func ScanItem(row store.Row) (domain.Item, error) {
	var (
		it     domain.Item
		status string
	)
	err := row.Scan(
		&it.ID, &it.VideoID, &it.ChannelID, &it.Title, &it.Strategy, &it.KeywordHits,
		&it.DurationSecs, &it.Views, &it.PublishedAt, &it.RiskScore,
		&status, &it.LastError, &it.DiscoveredAt, &it.ScoredAt, &it.UpdatedAt,
	)
	it.Status = domain.Status(status)
	return it, err
}
