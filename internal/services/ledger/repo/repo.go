// Package repo provides the ledger repository implementation
package repo

import (
	"context"
	"strings"
	"time"

	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	"tripwire/internal/services/ledger/domain"
)

// Repo defines the ledger repository contract
// reservation math lives in SQL so concurrent spenders never race
type Repo interface {
	// EnsureDay creates the day row with its allocation if missing
	EnsureDay(ctx context.Context, day time.Time, resource string, allocated float64) error

	// TryReserve bumps reserved when headroom covers amount, reporting admission
	TryReserve(ctx context.Context, day time.Time, resource string, amount float64) (bool, error)

	// InsertReservation records a held reservation
	InsertReservation(ctx context.Context, res domain.Reservation) error

	// TakeHeld flips a held reservation to next and returns it
	// ok is false when the reservation is not in held state (repeat delivery)
	TakeHeld(ctx context.Context, id string, next domain.ReservationState) (domain.Reservation, bool, error)

	// SettleCommit books the actual spend and refunds the hold
	SettleCommit(ctx context.Context, res domain.Reservation, actual float64) error

	// SettleRelease refunds the hold without spending
	SettleRelease(ctx context.Context, res domain.Reservation) error

	// StateFor reads one ledger row
	StateFor(ctx context.Context, day time.Time, resource string) (domain.State, error)

	// StatesOn reads all ledger rows for a day
	StatesOn(ctx context.Context, day time.Time) ([]domain.State, error)
}

type (
	// PG is a Postgres ledger repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres ledger repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) EnsureDay(ctx context.Context, day time.Time, resource string, allocated float64) error {
	const sql = `
		INSERT INTO ledgers (day, resource, allocated)
		VALUES ($1, $2, $3)
		ON CONFLICT (day, resource) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, sql, day, resource, allocated); err != nil {
		return perr.FromPostgres(err, "ledger ensure day")
	}
	return nil
}

func (r *queries) TryReserve(ctx context.Context, day time.Time, resource string, amount float64) (bool, error) {
	// the WHERE clause is the whole admission decision, never read-then-write
	const sql = `
		UPDATE ledgers
			SET reserved = reserved + $3
		WHERE day = $1
			AND resource = $2
			AND committed + reserved + $3 <= allocated
	`
	tag, err := r.q.Exec(ctx, sql, day, resource, amount)
	if err != nil {
		return false, perr.FromPostgres(err, "ledger reserve")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) InsertReservation(ctx context.Context, res domain.Reservation) error {
	const sql = `
		INSERT INTO reservations (id, day, resource, amount, state)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.q.Exec(ctx, sql, res.ID, res.Day, res.Resource, res.Amount, string(res.State)); err != nil {
		return perr.FromPostgres(err, "ledger insert reservation")
	}
	return nil
}

func (r *queries) TakeHeld(ctx context.Context, id string, next domain.ReservationState) (domain.Reservation, bool, error) {
	const sql = `
		UPDATE reservations
			SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = 'held'
		RETURNING id, day, resource, amount
	`
	var res domain.Reservation
	err := r.q.QueryRow(ctx, sql, id, string(next)).Scan(&res.ID, &res.Day, &res.Resource, &res.Amount)
	if err != nil {
		// no rows -> not held anymore, repeat delivery
		if strings.Contains(err.Error(), "no rows") {
			return domain.Reservation{}, false, nil
		}
		return domain.Reservation{}, false, perr.FromPostgres(err, "ledger take held")
	}
	res.State = next
	return res, true, nil
}

func (r *queries) SettleCommit(ctx context.Context, res domain.Reservation, actual float64) error {
	const sql = `
		UPDATE ledgers
			SET reserved = reserved - $3,
					committed = committed + $4
		WHERE day = $1 AND resource = $2
	`
	return store.ExecOne(ctx, r.q, sql, res.Day, res.Resource, res.Amount, actual)
}

func (r *queries) SettleRelease(ctx context.Context, res domain.Reservation) error {
	const sql = `
		UPDATE ledgers
			SET reserved = reserved - $3
		WHERE day = $1 AND resource = $2
	`
	return store.ExecOne(ctx, r.q, sql, res.Day, res.Resource, res.Amount)
}

func (r *queries) StateFor(ctx context.Context, day time.Time, resource string) (domain.State, error) {
	const sql = `
		SELECT day, resource, allocated, reserved, committed
		FROM ledgers
		WHERE day = $1 AND resource = $2
	`
	return store.One(ctx, r.q, scanState, sql, day, resource)
}

func (r *queries) StatesOn(ctx context.Context, day time.Time) ([]domain.State, error) {
	const sql = `
		SELECT day, resource, allocated, reserved, committed
		FROM ledgers
		WHERE day = $1
		ORDER BY resource
	`
	return store.Many(ctx, r.q, scanState, sql, day)
}

func scanState(row store.Row) (domain.State, error) {
	var s domain.State
	err := row.Scan(&s.Day, &s.Resource, &s.Allocated, &s.Reserved, &s.Committed)
	return s, err
}
