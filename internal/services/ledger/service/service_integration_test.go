//go:build integration_pg
// +build integration_pg

package service

import (
	"context"
	"sync"
	"testing"

	"tripwire/internal/modkit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/testkit"
	"tripwire/internal/services/ledger/domain"
)

func newLedgerSvc(t *testing.T, dsn string, allocations map[string]float64) (*Svc, func()) {
	t.Helper()
	st, done := testkit.OpenStore(t, dsn)
	svc := New(modkit.Deps{PG: st.PG}, Config{Allocations: allocations})
	return svc, done
}

func TestLedger_DailyBudgetScenario(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()

	svc, done := newLedgerSvc(t, dsn, map[string]float64{domain.ResourceAnalysis: 260})
	defer done()

	ctx := context.Background()

	// ten $24 tasks reserve, spend, and commit
	for i := 0; i < 10; i++ {
		res, err := svc.Reserve(ctx, domain.ResourceAnalysis, 24)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if err := svc.Commit(ctx, res.ID, 24); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	left, err := svc.Remaining(ctx, domain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 20 {
		t.Fatalf("remaining = %v, want 20", left)
	}

	// the eleventh $24 task denies cleanly without touching the ledger
	if _, err := svc.Reserve(ctx, domain.ResourceAnalysis, 24); !perr.IsCode(err, perr.ErrorCodeExhausted) {
		t.Fatalf("eleventh reserve = %v, want exhausted", err)
	}
	if left, _ = svc.Remaining(ctx, domain.ResourceAnalysis); left != 20 {
		t.Fatalf("remaining after denial = %v, want 20 unchanged", left)
	}

	// a smaller task still fits
	res, err := svc.Reserve(ctx, domain.ResourceAnalysis, 20)
	if err != nil {
		t.Fatalf("smaller reserve: %v", err)
	}
	if err := svc.Release(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if left, _ = svc.Remaining(ctx, domain.ResourceAnalysis); left != 20 {
		t.Fatalf("remaining after release = %v, want 20 refunded", left)
	}
}

func TestLedger_ConcurrentReservesNeverOversubscribe(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()

	svc, done := newLedgerSvc(t, dsn, map[string]float64{domain.ResourceAnalysis: 240})
	defer done()

	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	admitted := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Reserve(ctx, domain.ResourceAnalysis, 24)
			if err == nil {
				admitted <- res.ID
				return
			}
			if !perr.IsCode(err, perr.ErrorCodeExhausted) {
				t.Errorf("reserve: %v", err)
			}
		}()
	}
	wg.Wait()
	close(admitted)

	var ids []string
	for id := range admitted {
		ids = append(ids, id)
	}
	if len(ids) != 10 {
		t.Fatalf("admitted %d reservations of 24 into 240, want exactly 10", len(ids))
	}

	// committing all admissions lands exactly on the allocation, never beyond
	for _, id := range ids {
		if err := svc.Commit(ctx, id, 24); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
	}
	if left, _ := svc.Remaining(ctx, domain.ResourceAnalysis); left != 0 {
		t.Fatalf("remaining = %v, want 0", left)
	}
}

func TestLedger_SettlementIdempotent(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()

	svc, done := newLedgerSvc(t, dsn, map[string]float64{domain.ResourceAnalysis: 100})
	defer done()

	ctx := context.Background()

	res, err := svc.Reserve(ctx, domain.ResourceAnalysis, 30)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// commit refunds the unspent difference
	if err := svc.Commit(ctx, res.ID, 25); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if left, _ := svc.Remaining(ctx, domain.ResourceAnalysis); left != 75 {
		t.Fatalf("remaining = %v, want 75 after partial spend", left)
	}

	// at-least-once repeats change nothing
	for i := 0; i < 3; i++ {
		if err := svc.Commit(ctx, res.ID, 25); err != nil {
			t.Fatalf("repeat commit %d: %v", i, err)
		}
		if err := svc.Release(ctx, res.ID); err != nil {
			t.Fatalf("late release %d: %v", i, err)
		}
	}
	if left, _ := svc.Remaining(ctx, domain.ResourceAnalysis); left != 75 {
		t.Fatalf("remaining = %v, want 75 unchanged by repeats", left)
	}
}
