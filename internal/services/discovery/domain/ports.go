package domain

import "context"

// IngestPort accepts candidates from strategies and external webhooks
// intake is idempotent on video id
type IngestPort interface {
	// Ingest stores a candidate and queues it for scoring
	// created is false when the video was already known
	Ingest(ctx context.Context, c Candidate) (created bool, err error)
}

// QuotaPort reports per-strategy budget headroom
type QuotaPort interface {
	RemainingFor(ctx context.Context, s Strategy) (float64, error)
	RemainingAll(ctx context.Context) ([]Quota, error)
}
