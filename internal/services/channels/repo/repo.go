// Package repo provides the channel profile repository implementation
package repo

import (
	"context"
	"strings"
	"time"

	"tripwire/internal/core/tier"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	"tripwire/internal/services/channels/domain"
)

// Repo defines the channel profile repository contract
type Repo interface {
	// Get reads one profile, ok false when the channel has no row yet
	Get(ctx context.Context, channelID string) (domain.Profile, bool, error)

	// ClaimOutcome marks an outcome id as folded, ok false when a previous
	// delivery already claimed it
	ClaimOutcome(ctx context.Context, outcomeID string) (bool, error)

	// IncrementOutcome folds a verdict into the counters, creating the row if
	// needed, and returns the stored tier from before this update plus the
	// new counters
	IncrementOutcome(ctx context.Context, channelID string, violation bool) (prevTier tier.Tier, scanned, violations int, err error)

	// SetTier stores a reclassification and its cadence
	SetTier(ctx context.Context, channelID string, t tier.Tier, nextScanAt time.Time) error

	// Due lists profiles whose next_scan_at has passed, most overdue first
	Due(ctx context.Context, now time.Time, limit int) ([]domain.Profile, error)

	// MarkSwept stamps last_scanned_at and pushes next_scan_at out
	MarkSwept(ctx context.Context, channelID string, now, next time.Time) error
}

type (
	// PG is a Postgres channel profile repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres channel profile repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const profileCols = `channel_id, tier, violations_found, items_scanned, last_scanned_at, next_scan_at, updated_at`

func (r *queries) Get(ctx context.Context, channelID string) (domain.Profile, bool, error) {
	const sql = `
		SELECT ` + profileCols + `
		FROM channel_profiles
		WHERE channel_id = $1
	`
	p, err := store.One(ctx, r.q, scanProfile, sql, channelID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, perr.FromPostgres(err, "channels get")
	}
	return p, true, nil
}

func (r *queries) ClaimOutcome(ctx context.Context, outcomeID string) (bool, error) {
	const sql = `
		INSERT INTO applied_outcomes (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, sql, outcomeID)
	if err != nil {
		return false, perr.FromPostgres(err, "channels claim outcome")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) IncrementOutcome(ctx context.Context, channelID string, violation bool) (tier.Tier, int, int, error) {
	// RETURNING tier reads the stored value since tier is not in the SET list,
	// so callers see the pre-update classification alongside the new counters
	const sql = `
		INSERT INTO channel_profiles (channel_id, items_scanned, violations_found)
		VALUES ($1, 1, $2)
		ON CONFLICT (channel_id) DO UPDATE
			SET items_scanned    = channel_profiles.items_scanned + 1,
					violations_found = channel_profiles.violations_found + $2,
					updated_at       = NOW()
		RETURNING tier, items_scanned, violations_found
	`
	v := 0
	if violation {
		v = 1
	}
	var (
		prev              string
		scanned, violated int
	)
	if err := r.q.QueryRow(ctx, sql, channelID, v).Scan(&prev, &scanned, &violated); err != nil {
		return "", 0, 0, perr.FromPostgres(err, "channels increment outcome")
	}
	return tier.Tier(prev), scanned, violated, nil
}

func (r *queries) SetTier(ctx context.Context, channelID string, t tier.Tier, nextScanAt time.Time) error {
	const sql = `
		UPDATE channel_profiles
			SET tier = $2, next_scan_at = $3, updated_at = NOW()
		WHERE channel_id = $1
	`
	return store.ExecOne(ctx, r.q, sql, channelID, string(t), nextScanAt)
}

func (r *queries) Due(ctx context.Context, now time.Time, limit int) ([]domain.Profile, error) {
	const sql = `
		SELECT ` + profileCols + `
		FROM channel_profiles
		WHERE next_scan_at <= $1 AND tier <> 'IGNORE'
		ORDER BY next_scan_at ASC
		LIMIT $2
	`
	out, err := store.Many(ctx, r.q, scanProfile, sql, now, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "channels due")
	}
	return out, nil
}

func (r *queries) MarkSwept(ctx context.Context, channelID string, now, next time.Time) error {
	const sql = `
		UPDATE channel_profiles
			SET last_scanned_at = $2, next_scan_at = $3, updated_at = NOW()
		WHERE channel_id = $1
	`
	err := store.ExecOne(ctx, r.q, sql, channelID, now, next)
	if err != nil && strings.Contains(err.Error(), "exactly one row") {
		// channel disappeared between lease and sweep, nothing to stamp
		return nil
	}
	return err
}

func scanProfile(row store.Row) (domain.Profile, error) {
	var (
		p domain.Profile
		t string
	)
	err := row.Scan(&p.ChannelID, &t, &p.ViolationsFound, &p.ItemsScanned, &p.LastScannedAt, &p.NextScanAt, &p.UpdatedAt)
	p.Tier = tier.Tier(t)
	return p, err
}
