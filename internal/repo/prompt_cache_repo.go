// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the prompt cache table: an exact-match
// mapping from prompt text to a generated video URL.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/animai-studio/internal/domain"
)

// GetCachedVideo returns the entry stored for prompt, or ErrNotFound.
// The prompt is compared byte for byte.
func GetCachedVideo(ctx context.Context, db *gorm.DB, prompt string) (*domain.PromptCache, error) {
	var e domain.PromptCache
	err := db.WithContext(ctx).
		Where("prompt = ?", prompt).
		Take(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertCachedVideo stores videoURL for prompt. On key conflict the URL is
// overwritten and created_at refreshed, so the last writer wins.
func UpsertCachedVideo(ctx context.Context, db *gorm.DB, prompt, videoURL string) error {
	e := &domain.PromptCache{
		Prompt:    prompt,
		VideoURL:  videoURL,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prompt"}},
			DoUpdates: clause.AssignmentColumns([]string{"video_url", "created_at"}),
		}).
		Create(e).Error
}

// ListRecentCachedVideos returns up to limit entries, newest first.
func ListRecentCachedVideos(ctx context.Context, db *gorm.DB, limit int) ([]domain.PromptCache, error) {
	out := make([]domain.PromptCache, 0, limit)
	err := db.WithContext(ctx).
		Select("prompt", "video_url", "created_at").
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
