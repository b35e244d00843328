//go:build integration_pg
// +build integration_pg

package service

import (
	"context"
	"testing"
	"time"

	"tripwire/internal/modkit"
	"tripwire/internal/platform/testkit"
	"tripwire/internal/services/discovery/domain"
	itemrepo "tripwire/internal/services/items/repo"
)

func TestIngest_PersistsCandidateFields(t *testing.T) {
	dsn, stop := testkit.StartPostgres(t)
	defer stop()
	st, done := testkit.OpenStore(t, dsn)
	defer done()

	deps := modkit.Deps{PG: st.PG}
	svc := New(deps, newFakeLedger(nil), &fakeSweep{}, &fakeCatalog{}, Config{})

	ctx := context.Background()
	pub := time.Now().Add(-48 * time.Hour).UTC()
	created, err := svc.Ingest(ctx, domain.Candidate{
		VideoID:      "vid-title",
		ChannelID:    "UC-title",
		Title:        "verdachte compilatie",
		DurationSecs: 300,
		Views:        1234,
		PublishedAt:  pub,
		KeywordHits:  2,
		Strategy:     domain.StrategyKeyword,
	})
	if err != nil || !created {
		t.Fatalf("ingest = (%v, %v), want created", created, err)
	}

	it, err := itemrepo.NewPG().Bind(st.PG).ByVideo(ctx, "vid-title")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if it.Title != "verdachte compilatie" {
		t.Fatalf("title = %q, want the candidate title stored", it.Title)
	}
	if it.ChannelID != "UC-title" || it.KeywordHits != 2 || it.DurationSecs != 300 || it.Views != 1234 {
		t.Fatalf("item = %+v, want candidate fields stored", it)
	}
	if it.PublishedAt == nil || !it.PublishedAt.Equal(pub) {
		t.Fatalf("published_at = %v, want %v", it.PublishedAt, pub)
	}
	if it.Status != "discovered" {
		t.Fatalf("status = %q, want discovered", it.Status)
	}

	var queued int
	if err := st.PG.QueryRow(ctx, `SELECT COUNT(*) FROM score_queue WHERE item_id = $1`, it.ID).Scan(&queued); err != nil {
		t.Fatalf("count: %v", err)
	}
	if queued != 1 {
		t.Fatalf("score tasks = %d, want the new item queued for scoring", queued)
	}
}
