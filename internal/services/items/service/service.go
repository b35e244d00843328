// Package service implements the item read model
package service

import (
	"context"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/repokit"
	perr "tripwire/internal/platform/errors"
	"tripwire/internal/services/items/domain"
	"tripwire/internal/services/items/repo"
)

// Svc implements domain.ReaderPort
type Svc struct {
	Repo repo.Repo
	db   repokit.TxRunner
}

// New constructs the items service
func New(deps modkit.Deps) *Svc {
	if deps.PG == nil {
		panic("items.Service requires a non nil TxRunner")
	}
	return &Svc{Repo: repo.NewPG().Bind(deps.PG), db: deps.PG}
}

// Get reads one item by id
func (s *Svc) Get(ctx context.Context, id string) (domain.Item, error) {
	if id == "" {
		return domain.Item{}, perr.Validationf("item id is required")
	}
	return s.Repo.Get(ctx, id)
}

// ByVideo reads one item by its catalog video id
func (s *Svc) ByVideo(ctx context.Context, videoID string) (domain.Item, error) {
	if videoID == "" {
		return domain.Item{}, perr.Validationf("video_id is required")
	}
	return s.Repo.ByVideo(ctx, videoID)
}

// ListByStatus pages items in one lifecycle state, newest first
func (s *Svc) ListByStatus(ctx context.Context, status domain.Status, page, size int) ([]domain.Item, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	items, err := s.Repo.ListByStatus(ctx, status, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
