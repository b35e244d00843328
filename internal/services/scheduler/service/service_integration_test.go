//go:build integration_pg
// +build integration_pg

package service

import (
	"context"
	"testing"
	"time"

	"tripwire/internal/adapters/vision"
	"tripwire/internal/modkit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	"tripwire/internal/platform/testkit"
	ledgerdomain "tripwire/internal/services/ledger/domain"
	ledgerservice "tripwire/internal/services/ledger/service"
)

type fakeVision struct {
	result vision.Result
	err    error
	calls  int
}

func (f *fakeVision) Analyze(context.Context, vision.Request) (vision.Result, error) {
	f.calls++
	return f.result, f.err
}

func seedQueuedItem(t *testing.T, db store.TxRunner, videoID string, durationSecs int, priority, density float64) string {
	t.Helper()
	ctx := context.Background()
	var id string
	err := db.QueryRow(ctx, `
		INSERT INTO items (video_id, channel_id, strategy, duration_secs, views, published_at, risk_score, status, scored_at)
		VALUES ($1, 'UC-sched', 'trending', $2, 10000, NOW() - INTERVAL '1 day', $3, 'queued', NOW())
		RETURNING id
	`, videoID, durationSecs, priority).Scan(&id)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO scan_queue (item_id, priority, sampling_density) VALUES ($1, $2, $3)
	`, id, priority, density); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return id
}

func newScheduler(t *testing.T, st *store.Store, analysisBudget float64, vis Vision) (*Svc, *ledgerservice.Svc) {
	t.Helper()
	deps := modkit.Deps{PG: st.PG}
	led := ledgerservice.New(deps, ledgerservice.Config{
		Allocations: map[string]float64{ledgerdomain.ResourceAnalysis: analysisBudget},
	})
	return New(deps, led, vis, Config{MaxAttempts: 3}), led
}

func TestScheduler_DispatchSettlesAndFeedsBack(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Violation: true, Cost: 10}}
	svc, led := newScheduler(t, st, 260, vis)

	ctx := context.Background()
	// 240s at half density and 0.10 per sampled second estimates at 12
	id := seedQueuedItem(t, st.PG, "vid-s1", 240, 80, 0.5)

	handled, paused, err := svc.ProcessOnce(ctx)
	if err != nil || paused {
		t.Fatalf("process = (%d, %v, %v)", handled, paused, err)
	}
	if handled != 1 || vis.calls != 1 {
		t.Fatalf("handled/calls = %d/%d, want 1/1", handled, vis.calls)
	}

	var status string
	if err := st.PG.QueryRow(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "analyzed" {
		t.Fatalf("status = %q, want analyzed", status)
	}

	var tasks int
	st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue`).Scan(&tasks)
	if tasks != 0 {
		t.Fatalf("scan queue rows = %d, want acked", tasks)
	}

	var violation bool
	if err := st.PG.QueryRow(ctx, `SELECT violation FROM feedback_queue WHERE item_id = $1`, id).Scan(&violation); err != nil {
		t.Fatalf("read feedback: %v", err)
	}
	if !violation {
		t.Fatalf("feedback violation = false, want verdict forwarded")
	}

	var (
		outcome string
		cost    float64
	)
	if err := st.PG.QueryRow(ctx, `SELECT outcome, cost FROM scan_attempts WHERE item_id = $1`, id).Scan(&outcome, &cost); err != nil {
		t.Fatalf("read attempt: %v", err)
	}
	if outcome != "violation" || cost != 10 {
		t.Fatalf("attempt = (%s, %v), want (violation, 10)", outcome, cost)
	}

	// the 12 unit hold settled at the 10 actually billed
	left, err := led.Remaining(ctx, ledgerdomain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 250 {
		t.Fatalf("remaining = %v, want 250", left)
	}
}

func TestScheduler_BudgetDenialDefersUntouched(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Cost: 1}}
	svc, _ := newScheduler(t, st, 5, vis)

	ctx := context.Background()
	id := seedQueuedItem(t, st.PG, "vid-deny", 240, 90, 0.5)

	_, paused, err := svc.ProcessOnce(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !paused {
		t.Fatalf("paused = false, want budget denial to park the loop")
	}
	if vis.calls != 0 {
		t.Fatalf("vision calls = %d, denial must not dispatch", vis.calls)
	}

	var (
		attempts int
		nextAt   time.Time
		status   string
	)
	if err := st.PG.QueryRow(ctx, `
		SELECT sq.attempts, sq.next_attempt_at, i.status
		FROM scan_queue sq JOIN items i ON i.id = sq.item_id
		WHERE sq.item_id = $1
	`, id).Scan(&attempts, &nextAt, &status); err != nil {
		t.Fatalf("read task: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d, denial must not burn one", attempts)
	}
	if status != "queued" {
		t.Fatalf("status = %q, want still queued", status)
	}
	if !nextAt.After(time.Now().UTC().Truncate(24 * time.Hour).Add(23 * time.Hour)) {
		t.Fatalf("next_attempt_at = %v, want pushed to the next UTC day", nextAt)
	}
}

func TestScheduler_TransientFailureRetriesThenDeadLetters(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{err: perr.Unavailablef("vision down")}
	svc, led := newScheduler(t, st, 1000, vis)

	ctx := context.Background()
	id := seedQueuedItem(t, st.PG, "vid-flaky", 120, 70, 1.0)

	for i := 0; i < 3; i++ {
		// make the task visible again regardless of backoff
		if _, err := st.PG.Exec(ctx, `UPDATE scan_queue SET next_attempt_at = NOW() WHERE item_id = $1`, id); err != nil {
			t.Fatalf("reset visibility: %v", err)
		}
		if _, _, err := svc.ProcessOnce(ctx); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	var status string
	if err := st.PG.QueryRow(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "dead_lettered" {
		t.Fatalf("status = %q, want dead_lettered after retries", status)
	}

	var tasks int
	st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue`).Scan(&tasks)
	if tasks != 0 {
		t.Fatalf("scan queue rows = %d, want dropped", tasks)
	}

	// every failed hold was refunded in full
	left, err := led.Remaining(ctx, ledgerdomain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 1000 {
		t.Fatalf("remaining = %v, want full refund", left)
	}
}

func TestScheduler_RecoveryIsIdempotent(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Cost: 1}}
	svc, led := newScheduler(t, st, 100, vis)

	ctx := context.Background()
	id := seedQueuedItem(t, st.PG, "vid-crash", 120, 60, 0.5)

	// simulate a worker that died mid-call: reservation held, attempt open,
	// item marked analyzing, an hour ago
	res, err := led.Reserve(ctx, ledgerdomain.ResourceAnalysis, 6)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `
		INSERT INTO scan_attempts (item_id, reservation_id, started_at)
		VALUES ($1, $2, NOW() - INTERVAL '1 hour')
	`, id, res.ID); err != nil {
		t.Fatalf("open attempt: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `UPDATE items SET status = 'analyzing' WHERE id = $1`, id); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}

	n, err := svc.Recover(ctx, 30*time.Minute, 100)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}

	var (
		status  string
		outcome *string
		note    *string
	)
	if err := st.PG.QueryRow(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "scored" {
		t.Fatalf("status = %q, want reset for redispatch", status)
	}
	if err := st.PG.QueryRow(ctx, `SELECT outcome, note FROM scan_attempts WHERE item_id = $1`, id).Scan(&outcome, &note); err != nil {
		t.Fatalf("read attempt: %v", err)
	}
	if outcome == nil || *outcome != "failed" || note == nil || *note == "" {
		t.Fatalf("attempt = (%v, %v), want forced failure with audit note", outcome, note)
	}
	left, err := led.Remaining(ctx, ledgerdomain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 100 {
		t.Fatalf("remaining = %v, want hold refunded", left)
	}

	// a second sweep finds nothing and changes nothing
	n, err = svc.Recover(ctx, 30*time.Minute, 100)
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if n != 0 {
		t.Fatalf("second recover = %d, want 0", n)
	}
	if left, _ = led.Remaining(ctx, ledgerdomain.ResourceAnalysis); left != 100 {
		t.Fatalf("remaining = %v, want unchanged by repeat", left)
	}
}

func TestScheduler_UnpriceableItemDeadLetters(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Cost: 1}}
	svc, _ := newScheduler(t, st, 100, vis)

	ctx := context.Background()
	// a zero duration estimates at zero, which the ledger rejects outright
	id := seedQueuedItem(t, st.PG, "vid-zero", 0, 50, 0.5)

	_, paused, err := svc.ProcessOnce(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if paused {
		t.Fatalf("paused = true, a rejected estimate is not a budget denial")
	}
	if vis.calls != 0 {
		t.Fatalf("vision calls = %d, want none for an unpriceable item", vis.calls)
	}

	var (
		status  string
		lastErr *string
	)
	if err := st.PG.QueryRow(ctx, `SELECT status, last_error FROM items WHERE id = $1`, id).Scan(&status, &lastErr); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "dead_lettered" {
		t.Fatalf("status = %q, want dead_lettered instead of an endless retry loop", status)
	}
	if lastErr == nil || *lastErr == "" {
		t.Fatalf("last_error empty, want the rejection recorded")
	}

	var tasks int
	st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue`).Scan(&tasks)
	if tasks != 0 {
		t.Fatalf("scan queue rows = %d, want dropped", tasks)
	}
}

// drainVision cancels the dispatch context mid-call, the way a SIGTERM lands
// while an analysis is in flight
type drainVision struct {
	cancel context.CancelFunc
	result vision.Result
}

func (d *drainVision) Analyze(context.Context, vision.Request) (vision.Result, error) {
	d.cancel()
	return d.result, nil
}

func TestScheduler_ShutdownMidFlightStillSettles(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vis := &drainVision{cancel: cancel, result: vision.Result{Violation: false, Cost: 4}}
	svc, led := newScheduler(t, st, 100, vis)

	id := seedQueuedItem(t, st.PG, "vid-drain", 120, 60, 0.5)

	if _, _, err := svc.ProcessOnce(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	// the verdict landed despite the canceled loop context
	var status string
	if err := st.PG.QueryRow(context.Background(), `SELECT status FROM items WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "analyzed" {
		t.Fatalf("status = %q, want analyzed after drain settlement", status)
	}

	var tasks int
	st.PG.QueryRow(context.Background(), `SELECT COUNT(*) FROM scan_queue`).Scan(&tasks)
	if tasks != 0 {
		t.Fatalf("scan queue rows = %d, want acked", tasks)
	}

	// the hold was committed at actual cost, not left for recovery
	left, err := led.Remaining(context.Background(), ledgerdomain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 96 {
		t.Fatalf("remaining = %v, want 96 after the 4 unit commit", left)
	}
}

func TestScheduler_RecoveryRebuildsMissingTask(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Cost: 1}}
	svc, _ := newScheduler(t, st, 100, vis)

	ctx := context.Background()
	id := seedQueuedItem(t, st.PG, "vid-stranded", 120, 60, 0.5)

	// a crashed worker left the item analyzing and its queue row vanished
	if _, err := st.PG.Exec(ctx, `DELETE FROM scan_queue WHERE item_id = $1`, id); err != nil {
		t.Fatalf("drop task: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `
		INSERT INTO scan_attempts (item_id, started_at) VALUES ($1, NOW() - INTERVAL '1 hour')
	`, id); err != nil {
		t.Fatalf("open attempt: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `UPDATE items SET status = 'analyzing' WHERE id = $1`, id); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}

	n, err := svc.Recover(ctx, 30*time.Minute, 100)
	if err != nil || n != 1 {
		t.Fatalf("recover = (%d, %v), want 1", n, err)
	}

	var status string
	if err := st.PG.QueryRow(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if status != "scored" {
		t.Fatalf("status = %q, want reset instead of stranded", status)
	}

	// the item re-enters the pipeline through the scoring queue
	var pending int
	if err := st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM score_queue WHERE item_id = $1`, id).Scan(&pending); err != nil {
		t.Fatalf("count score tasks: %v", err)
	}
	if pending != 1 {
		t.Fatalf("score tasks = %d, want the rebuilt route", pending)
	}
}

func TestScheduler_InFlightItemKeepsItsTask(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	vis := &fakeVision{result: vision.Result{Cost: 1}}
	svc, led := newScheduler(t, st, 100, vis)

	ctx := context.Background()
	id := seedQueuedItem(t, st.PG, "vid-busy", 120, 60, 0.5)

	// another worker already holds the item
	if _, err := st.PG.Exec(ctx, `UPDATE items SET status = 'analyzing' WHERE id = $1`, id); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}

	if _, _, err := svc.ProcessOnce(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if vis.calls != 0 {
		t.Fatalf("vision calls = %d, want the claimed item skipped", vis.calls)
	}

	// the task stays parked under its lease for recovery to resolve
	var tasks int
	if err := st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue WHERE item_id = $1`, id).Scan(&tasks); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if tasks != 1 {
		t.Fatalf("scan queue rows = %d, want the task kept", tasks)
	}

	left, err := led.Remaining(ctx, ledgerdomain.ResourceAnalysis)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if left != 100 {
		t.Fatalf("remaining = %v, want the hold refunded", left)
	}
}
