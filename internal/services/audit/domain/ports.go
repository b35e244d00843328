package domain

import "context"

// RecorderPort accepts events for the append-only audit sink
// implementations are best-effort and must never block the caller's state machine
type RecorderPort interface {
	Ledger(ctx context.Context, ev LedgerEvent)
	Scan(ctx context.Context, ev ScanEvent)
}

// Noop discards all events, used when no sink is configured
type Noop struct{}

// Ledger discards the event
func (Noop) Ledger(context.Context, LedgerEvent) {}

// Scan discards the event
func (Noop) Scan(context.Context, ScanEvent) {}
