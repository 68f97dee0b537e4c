package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/cache"
	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/repo"
)

// MaxGalleryItems caps every gallery listing.
const MaxGalleryItems = 50

// GalleryService lists the most recently cached generations.
type GalleryService struct {
	Store cache.Store
	// DB, when set, backs Stats.
	DB    *gorm.DB
	Limit int
}

// Recent returns up to Limit entries, newest first. Limits outside
// 1..MaxGalleryItems fall back to MaxGalleryItems.
func (s *GalleryService) Recent(ctx context.Context) ([]domain.PromptCache, error) {
	limit := s.Limit
	if limit <= 0 || limit > MaxGalleryItems {
		limit = MaxGalleryItems
	}
	items, err := s.Store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []domain.PromptCache{}
	}
	return items, nil
}

// Stats reports the number of cached prompts and the newest creation time,
// which change whenever the gallery does. It returns ErrNoStats without a DB.
func (s *GalleryService) Stats(ctx context.Context) (count int64, newest time.Time, err error) {
	if s.DB == nil {
		return 0, time.Time{}, ErrNoStats
	}
	count, ts, err := repo.PromptCacheStats(ctx, s.DB)
	if err != nil {
		return 0, time.Time{}, err
	}
	if ts != nil {
		newest = *ts
	}
	return count, newest, nil
}
