// Package domain defines the feedback stage ports
package domain

import "context"

// IntakePort accepts externally delivered analysis verdicts
// push delivery lands here, the worker folds the queue either way
type IntakePort interface {
	// Record resolves the video's item and enqueues a verdict for it
	Record(ctx context.Context, videoID string, violation bool) error
}
