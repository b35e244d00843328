package domain

import (
	"context"
	"time"
)

// LedgerPort is the budget accounting surface every spender uses
// Reserve denies with ErrExhausted when the day's pool cannot cover amount
type LedgerPort interface {
	Reserve(ctx context.Context, resource string, amount float64) (Reservation, error)
	Commit(ctx context.Context, reservationID string, actual float64) error
	Release(ctx context.Context, reservationID string) error
	Remaining(ctx context.Context, resource string) (float64, error)
}

// ReaderPort serves the admin API's ledger views
type ReaderPort interface {
	StateFor(ctx context.Context, day time.Time, resource string) (State, error)
	StatesOn(ctx context.Context, day time.Time) ([]State, error)
}
