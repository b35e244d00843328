package service

import (
	"context"
	"testing"
	"time"

	"tripwire/internal/modkit"
	chandomain "tripwire/internal/services/channels/domain"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// countingLedger records every reserve attempt, denied ones included
type countingLedger struct {
	*fakeLedger
	attempts map[string]int
}

func (c *countingLedger) Reserve(ctx context.Context, resource string, amount float64) (ledgerdomain.Reservation, error) {
	c.attempts[resource]++
	return c.fakeLedger.Reserve(ctx, resource, amount)
}

func TestPass_DeniedStrategyResumesNextDay(t *testing.T) {
	led := &countingLedger{
		fakeLedger: newFakeLedger(map[string]float64{
			ledgerdomain.ResourceTracking: 0,
			ledgerdomain.ResourceTrending: 1e9,
		}),
		attempts: map[string]int{},
	}
	sw := &fakeSweep{due: []chandomain.Profile{{ChannelID: "UC-1"}}}
	svc := New(modkit.Deps{PG: newFakeDB()}, led, sw, &fakeCatalog{videos: vids("v1")}, Config{})

	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	st := newLoopState()
	opts := RunOptions{TickInterval: time.Minute, TrendingEvery: 15 * time.Minute, KeywordEvery: time.Hour}

	svc.pass(ctx, st, opts)
	if led.attempts[ledgerdomain.ResourceTracking] != 1 {
		t.Fatalf("tracking attempts = %d, want 1", led.attempts[ledgerdomain.ResourceTracking])
	}

	// later the same day the denied pool stays parked while trending keeps going
	for i := 0; i < 3; i++ {
		clock = clock.Add(2 * time.Hour)
		svc.pass(ctx, st, opts)
	}
	if got := led.attempts[ledgerdomain.ResourceTracking]; got != 1 {
		t.Fatalf("tracking retried %d times before day rollover, want denial to hold", got-1)
	}
	if got := led.attempts[ledgerdomain.ResourceTrending]; got < 4 {
		t.Fatalf("trending attempts = %d, want its cadence unaffected by the tracking denial", got)
	}

	// the UTC day boundary refills the pool and only then is tracking retried
	clock = time.Date(2026, 8, 31, 0, 0, 1, 0, time.UTC)
	svc.pass(ctx, st, opts)
	if got := led.attempts[ledgerdomain.ResourceTracking]; got != 2 {
		t.Fatalf("tracking attempts after rollover = %d, want 2", got)
	}
}

func TestPass_AllDeniedSleepsToDayBoundary(t *testing.T) {
	led := &countingLedger{
		fakeLedger: newFakeLedger(map[string]float64{
			ledgerdomain.ResourceTracking: 0,
			ledgerdomain.ResourceTrending: 0,
		}),
		attempts: map[string]int{},
	}
	sw := &fakeSweep{due: []chandomain.Profile{{ChannelID: "UC-1"}}}
	svc := New(modkit.Deps{PG: newFakeDB()}, led, sw, &fakeCatalog{}, Config{})

	clock := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	st := newLoopState()
	wait := svc.pass(context.Background(), st, RunOptions{TickInterval: time.Minute})
	if want := 6 * time.Hour; wait != want {
		t.Fatalf("wait = %v, want sleep to the next UTC day %v", wait, want)
	}
}
