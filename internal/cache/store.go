// Package cache implements the prompt cache: an exact-match mapping from a
// prompt string to the URL of a video generated for it.
//
// SQLStore is the source of truth (the prompt_cache table). RedisFront is an
// optional read-through layer in front of any Store; its failures are logged
// and never surface to callers.
package cache

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/repo"
)

// Store is the persistence contract used by the generation flow and the
// gallery.
type Store interface {
	// Lookup returns the video URL cached for prompt. found is false on a
	// miss or when the stored URL is empty.
	Lookup(ctx context.Context, prompt string) (videoURL string, found bool, err error)
	// Save upserts the entry for prompt; the last write wins.
	Save(ctx context.Context, prompt, videoURL string) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.PromptCache, error)
}

// SQLStore is a Store backed by the prompt_cache table.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore returns a Store over db.
func NewSQLStore(db *gorm.DB) *SQLStore { return &SQLStore{DB: db} }

// Lookup implements Store.
func (s *SQLStore) Lookup(ctx context.Context, prompt string) (string, bool, error) {
	e, err := repo.GetCachedVideo(ctx, s.DB, prompt)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if e.VideoURL == "" {
		return "", false, nil
	}
	return e.VideoURL, true, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, prompt, videoURL string) error {
	return repo.UpsertCachedVideo(ctx, s.DB, prompt, videoURL)
}

// Recent implements Store.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]domain.PromptCache, error) {
	return repo.ListRecentCachedVideos(ctx, s.DB, limit)
}
