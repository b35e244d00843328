//go:build integration_pg
// +build integration_pg

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"tripwire/internal/core/tier"
	"tripwire/internal/modkit"
	"tripwire/internal/platform/store"
	"tripwire/internal/platform/testkit"
	chanservice "tripwire/internal/services/channels/service"
)

func seedPendingItem(t *testing.T, db store.TxRunner, videoID, channelID string, risk float64) string {
	t.Helper()
	ctx := context.Background()
	var id string
	err := db.QueryRow(ctx, `
		INSERT INTO items (video_id, channel_id, strategy, duration_secs, views, published_at, risk_score, status, scored_at)
		VALUES ($1, $2, 'tracking', 300, 5000, NOW() - INTERVAL '3 days', $3, 'queued', NOW())
		RETURNING id
	`, videoID, channelID, risk).Scan(&id)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO scan_queue (item_id, priority, sampling_density) VALUES ($1, $2, 0.33)
	`, id, risk); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return id
}

func TestFeedback_TierChangeRescoresInPlace(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	deps := modkit.Deps{PG: st.PG}
	channels := chanservice.New(deps, chanservice.Config{})
	svc := New(deps, channels, Config{})

	ctx := context.Background()
	const ch = "UC-feedback"

	pendingID := seedPendingItem(t, st.PG, "vid-pending", ch, 20)
	analyzedID := seedPendingItem(t, st.PG, "vid-analyzed", ch, 50)
	if _, err := st.PG.Exec(ctx, `DELETE FROM scan_queue WHERE item_id = $1`, analyzedID); err != nil {
		t.Fatalf("clear task: %v", err)
	}
	if _, err := st.PG.Exec(ctx, `UPDATE items SET status = 'analyzed' WHERE id = $1`, analyzedID); err != nil {
		t.Fatalf("finish item: %v", err)
	}

	// the analyzed item's verdict arrives: first scan, a violation
	if _, err := st.PG.Exec(ctx, `
		INSERT INTO feedback_queue (item_id, channel_id, violation) VALUES ($1, $2, TRUE)
	`, analyzedID, ch); err != nil {
		t.Fatalf("enqueue verdict: %v", err)
	}

	n, err := svc.ProcessOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("process = (%d, %v), want one verdict folded", n, err)
	}

	profile, err := channels.Get(ctx, ch)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Tier != tier.Platinum {
		t.Fatalf("tier = %s, want %s after a 1/1 violation rate", profile.Tier, tier.Platinum)
	}

	// the pending item was rescored in place with the heavier channel weight
	var (
		tasks    int
		priority float64
		itemRisk float64
	)
	if err := st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue`).Scan(&tasks); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if tasks != 1 {
		t.Fatalf("scan tasks = %d, want the single rewritten row", tasks)
	}
	if err := st.PG.QueryRow(ctx, `
		SELECT sq.priority, i.risk_score FROM scan_queue sq JOIN items i ON i.id = sq.item_id
		WHERE sq.item_id = $1
	`, pendingID).Scan(&priority, &itemRisk); err != nil {
		t.Fatalf("read task: %v", err)
	}
	if priority <= 20 {
		t.Fatalf("priority = %v, want raised above the pre-verdict 20", priority)
	}
	if priority != itemRisk {
		t.Fatalf("priority %v != item risk %v, queue must mirror the item", priority, itemRisk)
	}

	// the verdict is folded exactly once
	var left int
	st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_queue`).Scan(&left)
	if left != 0 {
		t.Fatalf("feedback rows = %d, want acked", left)
	}
}

func TestFeedback_CleanVerdictNoRescore(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	deps := modkit.Deps{PG: st.PG}
	channels := chanservice.New(deps, chanservice.Config{})
	svc := New(deps, channels, Config{})

	ctx := context.Background()
	const ch = "UC-clean-verdict"

	// a channel already bronze stays bronze on one clean scan
	pendingID := seedPendingItem(t, st.PG, "vid-stays", ch, 33)
	if _, err := st.PG.Exec(ctx, `
		INSERT INTO feedback_queue (item_id, channel_id, violation) VALUES ($1, $2, FALSE)
	`, pendingID, ch); err != nil {
		t.Fatalf("enqueue verdict: %v", err)
	}

	if _, err := svc.ProcessOnce(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	var priority float64
	if err := st.PG.QueryRow(ctx, `SELECT priority FROM scan_queue WHERE item_id = $1`, pendingID).Scan(&priority); err != nil {
		t.Fatalf("read task: %v", err)
	}
	if priority != 33 {
		t.Fatalf("priority = %v, want untouched without a tier change", priority)
	}
}

// a worker can die between the counter fold and the queue ack, the redelivered
// verdict must then read the counters instead of incrementing them again
func TestFeedback_RedeliveredVerdictFoldsOnce(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	deps := modkit.Deps{PG: st.PG}
	channels := chanservice.New(deps, chanservice.Config{})
	svc := New(deps, channels, Config{})

	ctx := context.Background()
	const ch = "UC-refold"

	itemID := seedPendingItem(t, st.PG, "vid-refold", ch, 10)
	verdictID := uuid.NewString()
	if _, err := st.PG.Exec(ctx, `
		INSERT INTO feedback_queue (id, item_id, channel_id, violation) VALUES ($1, $2, $3, TRUE)
	`, verdictID, itemID, ch); err != nil {
		t.Fatalf("enqueue verdict: %v", err)
	}

	// first delivery folded the counters but the worker died before acking
	if _, _, err := channels.ApplyOutcome(ctx, ch, true, verdictID); err != nil {
		t.Fatalf("first fold: %v", err)
	}

	n, err := svc.ProcessOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("redelivery pass = (%d, %v), want the verdict leased once", n, err)
	}

	profile, err := channels.Get(ctx, ch)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ItemsScanned != 1 || profile.ViolationsFound != 1 {
		t.Fatalf("counters = %d/%d, want the redelivery absorbed at 1/1",
			profile.ViolationsFound, profile.ItemsScanned)
	}

	var left int
	st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM feedback_queue`).Scan(&left)
	if left != 0 {
		t.Fatalf("feedback rows = %d, want acked after the absorbed redelivery", left)
	}
}
