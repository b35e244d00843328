package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tripwire/internal/adapters/catalog"
	"tripwire/internal/core/tier"
	"tripwire/internal/modkit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/platform/store"
	chandomain "tripwire/internal/services/channels/domain"
	"tripwire/internal/services/discovery/domain"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// fakeLedger tracks reservations in memory with per-resource pools
type fakeLedger struct {
	pools    map[string]float64
	reserves []string
	commits  int
	releases int
	seq      int
	held     map[string]struct {
		resource string
		amount   float64
	}
}

func newFakeLedger(pools map[string]float64) *fakeLedger {
	return &fakeLedger{
		pools: pools,
		held: map[string]struct {
			resource string
			amount   float64
		}{},
	}
}

func (f *fakeLedger) Reserve(_ context.Context, resource string, amount float64) (ledgerdomain.Reservation, error) {
	left, ok := f.pools[resource]
	if !ok || left < amount {
		return ledgerdomain.Reservation{}, ledgerdomain.ErrExhausted
	}
	f.pools[resource] = left - amount
	f.seq++
	id := fmt.Sprintf("res-%d", f.seq)
	f.reserves = append(f.reserves, resource)
	f.held[id] = struct {
		resource string
		amount   float64
	}{resource, amount}
	return ledgerdomain.Reservation{ID: id, Resource: resource, Amount: amount}, nil
}

func (f *fakeLedger) Commit(_ context.Context, id string, actual float64) error {
	h, ok := f.held[id]
	if !ok {
		return nil
	}
	delete(f.held, id)
	f.pools[h.resource] += h.amount - actual
	f.commits++
	return nil
}

func (f *fakeLedger) Release(_ context.Context, id string) error {
	h, ok := f.held[id]
	if !ok {
		return nil
	}
	delete(f.held, id)
	f.pools[h.resource] += h.amount
	f.releases++
	return nil
}

func (f *fakeLedger) Remaining(_ context.Context, resource string) (float64, error) {
	left, ok := f.pools[resource]
	if !ok {
		return 0, perr.InvalidArgf("unknown budget resource %q", resource)
	}
	return left, nil
}

// fakeSweep serves a fixed due list and records sweeps
type fakeSweep struct {
	due   []chandomain.Profile
	swept []string
}

func (f *fakeSweep) DueChannels(_ context.Context, _ time.Time, limit int) ([]chandomain.Profile, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeSweep) MarkSwept(_ context.Context, channelID string, _ tier.Tier, _ time.Time) error {
	f.swept = append(f.swept, channelID)
	return nil
}

// fakeCatalog returns canned videos, optionally failing per channel
type fakeCatalog struct {
	videos   []catalog.Video
	failFor  map[string]bool
	searches []string
}

func (f *fakeCatalog) ChannelVideos(_ context.Context, channelID string, _ time.Time) ([]catalog.Video, error) {
	if f.failFor[channelID] {
		return nil, perr.Unavailablef("catalog down")
	}
	return f.videos, nil
}

func (f *fakeCatalog) Trending(context.Context) ([]catalog.Video, error) { return f.videos, nil }

func (f *fakeCatalog) Search(_ context.Context, q string) ([]catalog.Video, error) {
	f.searches = append(f.searches, q)
	return f.videos, nil
}

// fakeDB satisfies the sql seam for intake without a real database
// every insert returns a fresh id, duplicates are simulated via seen
type fakeDB struct {
	seq  int
	seen map[string]bool
}

func newFakeDB() *fakeDB { return &fakeDB{seen: map[string]bool{}} }

func (f *fakeDB) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return fakeTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) store.Row {
	videoID, _ := args[0].(string)
	if f.seen[videoID] {
		return fakeRow{err: errors.New("no rows in result set")}
	}
	f.seen[videoID] = true
	f.seq++
	return fakeRow{id: fmt.Sprintf("item-%d", f.seq)}
}

func (f *fakeDB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return fn(f)
}

type fakeTag struct{}

func (fakeTag) String() string      { return "INSERT 0 1" }
func (fakeTag) RowsAffected() int64 { return 1 }

type fakeRow struct {
	id  string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*string); ok {
		*p = r.id
	}
	return nil
}

func vids(ids ...string) []catalog.Video {
	out := make([]catalog.Video, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Video{
			VideoID:      id,
			ChannelID:    "UC-" + id,
			DurationSecs: 300,
			Views:        1000,
			PublishedAt:  time.Now().Add(-24 * time.Hour),
		})
	}
	return out
}

func newSvc(t *testing.T, led *fakeLedger, sw *fakeSweep, cat Catalog, keywords ...string) *Svc {
	t.Helper()
	return New(modkit.Deps{PG: newFakeDB()}, led, sw, cat, Config{Keywords: keywords})
}

func TestIngest_DuplicateAbsorbed(t *testing.T) {
	led := newFakeLedger(map[string]float64{})
	svc := newSvc(t, led, &fakeSweep{}, &fakeCatalog{})

	ctx := context.Background()
	c := domain.Candidate{VideoID: "v1", ChannelID: "UC-1", Strategy: domain.StrategyTrending}

	created, err := svc.Ingest(ctx, c)
	if err != nil || !created {
		t.Fatalf("first ingest = (%v, %v), want created", created, err)
	}
	created, err = svc.Ingest(ctx, c)
	if err != nil || created {
		t.Fatalf("repeat ingest = (%v, %v), want absorbed", created, err)
	}
}

func TestIngest_Validation(t *testing.T) {
	svc := newSvc(t, newFakeLedger(nil), &fakeSweep{}, &fakeCatalog{})
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, domain.Candidate{ChannelID: "UC-1", Strategy: domain.StrategyTrending}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("missing video_id = %v, want validation error", err)
	}
	if _, err := svc.Ingest(ctx, domain.Candidate{VideoID: "v", ChannelID: "c", Strategy: "bogus"}); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("bad strategy = %v, want validation error", err)
	}
}

func TestSweepTracking_SpendsPerCall(t *testing.T) {
	led := newFakeLedger(map[string]float64{ledgerdomain.ResourceTracking: 100})
	sw := &fakeSweep{due: []chandomain.Profile{
		{ChannelID: "UC-a"}, {ChannelID: "UC-b"},
	}}
	svc := newSvc(t, led, sw, &fakeCatalog{videos: vids("a1", "a2")})

	n, err := svc.SweepTracking(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// two channels reserve and commit one sweep each, second channel's videos
	// are duplicates of the first's and absorb
	if got := len(led.reserves); got != 2 {
		t.Fatalf("reserves = %d, want 2", got)
	}
	if led.commits != 2 || led.releases != 0 {
		t.Fatalf("commits/releases = %d/%d, want 2/0", led.commits, led.releases)
	}
	if left := led.pools[ledgerdomain.ResourceTracking]; left != 100-2*catalog.CostChannelSweep {
		t.Fatalf("tracking pool = %v, want %v", left, 100-2*catalog.CostChannelSweep)
	}
	if n != 2 {
		t.Fatalf("ingested = %d, want 2 new items", n)
	}
	if len(sw.swept) != 2 {
		t.Fatalf("swept = %v, want both channels marked", sw.swept)
	}
}

func TestSweepTracking_ReleasesOnCatalogFailure(t *testing.T) {
	led := newFakeLedger(map[string]float64{ledgerdomain.ResourceTracking: 100})
	sw := &fakeSweep{due: []chandomain.Profile{
		{ChannelID: "UC-bad"}, {ChannelID: "UC-good"},
	}}
	cat := &fakeCatalog{videos: vids("g1"), failFor: map[string]bool{"UC-bad": true}}
	svc := newSvc(t, led, sw, cat)

	n, err := svc.SweepTracking(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if led.releases != 1 || led.commits != 1 {
		t.Fatalf("releases/commits = %d/%d, want 1/1", led.releases, led.commits)
	}
	// the failed sweep's units were refunded
	if left := led.pools[ledgerdomain.ResourceTracking]; left != 100-catalog.CostChannelSweep {
		t.Fatalf("tracking pool = %v, want refund of failed sweep", left)
	}
	if n != 1 {
		t.Fatalf("ingested = %d, want 1 from the healthy channel", n)
	}
	// the failed channel is not marked swept and stays due
	if len(sw.swept) != 1 || sw.swept[0] != "UC-good" {
		t.Fatalf("swept = %v, want only the healthy channel", sw.swept)
	}
}

// a 417 unit day split 70/20/10 leaves the keyword pool too small for a single
// 100 unit search while tracking still has plenty, and the pools never borrow
func TestStrategyPoolsNeverBorrow(t *testing.T) {
	led := newFakeLedger(map[string]float64{
		ledgerdomain.ResourceTracking: 417 * 0.70,
		ledgerdomain.ResourceTrending: 417 * 0.20,
		ledgerdomain.ResourceKeyword:  417 * 0.10,
	})
	sw := &fakeSweep{due: []chandomain.Profile{
		{ChannelID: "UC-1"}, {ChannelID: "UC-2"}, {ChannelID: "UC-3"},
	}}
	svc := newSvc(t, led, sw, &fakeCatalog{videos: vids("t1")}, "slurwoorden")

	ctx := context.Background()

	if _, err := svc.SweepTracking(ctx); err != nil {
		t.Fatalf("tracking: %v", err)
	}
	if left := led.pools[ledgerdomain.ResourceTracking]; left != 417*0.70-3*catalog.CostChannelSweep {
		t.Fatalf("tracking pool = %v after three sweeps", left)
	}

	// ~42 keyword units cannot cover a 100 unit search, tracking headroom is irrelevant
	if _, err := svc.SearchKeywords(ctx); !perr.IsCode(err, perr.ErrorCodeExhausted) {
		t.Fatalf("keyword search = %v, want exhausted", err)
	}
	if left := led.pools[ledgerdomain.ResourceKeyword]; left != 417*0.10 {
		t.Fatalf("keyword pool = %v, want untouched by denial", left)
	}

	quotas, err := svc.RemainingAll(ctx)
	if err != nil {
		t.Fatalf("remaining all: %v", err)
	}
	if len(quotas) != 3 {
		t.Fatalf("quotas = %d entries, want 3", len(quotas))
	}
}

func TestPullTrending_CommitsActual(t *testing.T) {
	led := newFakeLedger(map[string]float64{ledgerdomain.ResourceTrending: 10})
	svc := newSvc(t, led, &fakeSweep{}, &fakeCatalog{videos: vids("tr1", "tr2")})

	n, err := svc.PullTrending(context.Background())
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if n != 2 {
		t.Fatalf("ingested = %d, want 2", n)
	}
	if left := led.pools[ledgerdomain.ResourceTrending]; left != 10-catalog.CostTrending {
		t.Fatalf("trending pool = %v, want one pull spent", left)
	}

	// second pull drains the pool, third denies
	if _, err := svc.PullTrending(context.Background()); err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if _, err := svc.PullTrending(context.Background()); !perr.IsCode(err, perr.ErrorCodeExhausted) {
		t.Fatalf("third pull = %v, want exhausted", err)
	}
}
