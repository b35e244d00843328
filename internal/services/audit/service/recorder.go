// Package service implements the columnar audit trail
package service

import (
	"context"
	"sync"
	"time"

	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/store"
	"tripwire/internal/services/audit/domain"
)

// Config carries audit sink tunables
type Config struct {
	// FlushEvery bounds how long an event may sit in the buffer
	FlushEvery time.Duration
	// FlushAt triggers an early flush when the buffer reaches this size
	FlushAt int
	// BufferCap drops new events beyond this backlog, the trail is best effort
	BufferCap int
}

// Recorder implements domain.RecorderPort over a columnar store
// writes are buffered and never block or fail the caller
type Recorder struct {
	ch  store.Clickhouse
	cfg Config
	log logger.Logger

	mu      sync.Mutex
	ledgers []domain.LedgerEvent
	scans   []domain.ScanEvent

	wake chan struct{}
	done chan struct{}
}

// NewRecorder constructs the audit recorder. Panics when ch is nil
func NewRecorder(ch store.Clickhouse, cfg Config) *Recorder {
	if ch == nil {
		panic("audit.Recorder requires a clickhouse seam")
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	if cfg.FlushAt <= 0 {
		cfg.FlushAt = 256
	}
	if cfg.BufferCap <= 0 {
		cfg.BufferCap = 8192
	}
	return &Recorder{
		ch:   ch,
		cfg:  cfg,
		log:  *logger.Named("audit"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// EnsureSchema creates the audit tables when missing
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	const ledgers = `
		CREATE TABLE IF NOT EXISTS audit_ledger (
			at             DateTime64(3, 'UTC'),
			day            String,
			resource       LowCardinality(String),
			action         LowCardinality(String),
			amount         Float64,
			reservation_id String
		)
		ENGINE = MergeTree
		ORDER BY (day, resource, at)
	`
	const scans = `
		CREATE TABLE IF NOT EXISTS audit_scans (
			at         DateTime64(3, 'UTC'),
			item_id    String,
			channel_id String,
			outcome    LowCardinality(String),
			cost       Float64,
			risk_score Float64,
			density    Float64,
			note       String
		)
		ENGINE = MergeTree
		ORDER BY (at, item_id)
	`
	if err := r.ch.Exec(ctx, ledgers); err != nil {
		return err
	}
	return r.ch.Exec(ctx, scans)
}

// Ledger buffers a budget event
func (r *Recorder) Ledger(_ context.Context, ev domain.LedgerEvent) {
	r.mu.Lock()
	if len(r.ledgers) >= r.cfg.BufferCap {
		r.mu.Unlock()
		return
	}
	r.ledgers = append(r.ledgers, ev)
	full := len(r.ledgers) >= r.cfg.FlushAt
	r.mu.Unlock()
	if full {
		r.poke()
	}
}

// Scan buffers an analysis event
func (r *Recorder) Scan(_ context.Context, ev domain.ScanEvent) {
	r.mu.Lock()
	if len(r.scans) >= r.cfg.BufferCap {
		r.mu.Unlock()
		return
	}
	r.scans = append(r.scans, ev)
	full := len(r.scans) >= r.cfg.FlushAt
	r.mu.Unlock()
	if full {
		r.poke()
	}
}

func (r *Recorder) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run flushes the buffers until ctx is done, then drains once
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	t := time.NewTicker(r.cfg.FlushEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background())
			return ctx.Err()
		case <-t.C:
		case <-r.wake:
		}
		r.flush(ctx)
	}
}

func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	ledgers := r.ledgers
	scans := r.scans
	r.ledgers = nil
	r.scans = nil
	r.mu.Unlock()

	if len(ledgers) > 0 {
		rows := make([][]any, 0, len(ledgers))
		for _, ev := range ledgers {
			rows = append(rows, []any{ev.At, ev.Day, ev.Resource, ev.Action, ev.Amount, ev.ReservationID})
		}
		cols := []string{"at", "day", "resource", "action", "amount", "reservation_id"}
		if err := r.ch.Insert(ctx, "audit_ledger", cols, rows); err != nil {
			// the trail is advisory, losing a batch is logged and forgotten
			r.log.Warn().Err(err).Int("rows", len(rows)).Msg("ledger audit flush failed")
		}
	}
	if len(scans) > 0 {
		rows := make([][]any, 0, len(scans))
		for _, ev := range scans {
			rows = append(rows, []any{ev.At, ev.ItemID, ev.ChannelID, ev.Outcome, ev.Cost, ev.RiskScore, ev.Density, ev.Note})
		}
		cols := []string{"at", "item_id", "channel_id", "outcome", "cost", "risk_score", "density", "note"}
		if err := r.ch.Insert(ctx, "audit_scans", cols, rows); err != nil {
			r.log.Warn().Err(err).Int("rows", len(rows)).Msg("scan audit flush failed")
		}
	}
}
