package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tripwire/internal/platform/store"
	"tripwire/internal/services/audit/domain"
)

type fakeCH struct {
	mu      sync.Mutex
	inserts map[string][][]any
	fail    bool
}

func newFakeCH() *fakeCH { return &fakeCH{inserts: map[string][][]any{}} }

func (f *fakeCH) Insert(_ context.Context, table string, _ []string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink down")
	}
	f.inserts[table] = append(f.inserts[table], rows...)
	return nil
}

func (f *fakeCH) Exec(context.Context, string, ...any) error { return nil }

func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCH) Close() error { return nil }

func (f *fakeCH) rows(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts[table])
}

func TestRecorder_FlushBatchesBothStreams(t *testing.T) {
	ch := newFakeCH()
	r := NewRecorder(ch, Config{})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r.Ledger(ctx, domain.LedgerEvent{At: time.Now(), Resource: "analysis", Action: "reserved", Amount: 5})
	}
	r.Scan(ctx, domain.ScanEvent{At: time.Now(), ItemID: "it-1", Outcome: "clean"})

	r.flush(ctx)

	if n := ch.rows("audit_ledger"); n != 3 {
		t.Fatalf("ledger rows = %d, want 3", n)
	}
	if n := ch.rows("audit_scans"); n != 1 {
		t.Fatalf("scan rows = %d, want 1", n)
	}

	// flushed buffers do not replay
	r.flush(ctx)
	if n := ch.rows("audit_ledger"); n != 3 {
		t.Fatalf("ledger rows after empty flush = %d, want 3", n)
	}
}

func TestRecorder_SinkFailureDoesNotSurface(t *testing.T) {
	ch := newFakeCH()
	ch.fail = true
	r := NewRecorder(ch, Config{})

	ctx := context.Background()
	r.Ledger(ctx, domain.LedgerEvent{At: time.Now(), Action: "denied"})
	r.flush(ctx)

	// the failed batch is dropped, the next one goes through
	ch.fail = false
	r.Scan(ctx, domain.ScanEvent{At: time.Now(), ItemID: "it-2"})
	r.flush(ctx)
	if n := ch.rows("audit_scans"); n != 1 {
		t.Fatalf("scan rows = %d, want 1 after sink recovery", n)
	}
	if n := ch.rows("audit_ledger"); n != 0 {
		t.Fatalf("ledger rows = %d, failed batch must not replay", n)
	}
}

func TestRecorder_BufferCapDropsExcess(t *testing.T) {
	ch := newFakeCH()
	r := NewRecorder(ch, Config{BufferCap: 2, FlushAt: 100})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		r.Scan(ctx, domain.ScanEvent{At: time.Now(), ItemID: "it"})
	}
	r.flush(ctx)

	if n := ch.rows("audit_scans"); n != 2 {
		t.Fatalf("scan rows = %d, want cap of 2", n)
	}
}
