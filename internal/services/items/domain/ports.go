package domain

import "context"

// ReaderPort serves the admin API's item views
type ReaderPort interface {
	Get(ctx context.Context, id string) (Item, error)
	ByVideo(ctx context.Context, videoID string) (Item, error)
	ListByStatus(ctx context.Context, status Status, page, size int) ([]Item, int, error)
}
