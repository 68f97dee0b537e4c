// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for weak
// ETag generation in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
)

// latest returns the row count of q and the greatest value of col.
// Sorting and taking one row avoids MAX() returning TEXT in SQLite.
func latest(q *gorm.DB, col string) (count int64, maxAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var ts []time.Time
	if err = q.Session(&gorm.Session{}).Order(col+" DESC").Limit(1).Pluck(col, &ts).Error; err != nil {
		return 0, nil, err
	}
	if len(ts) == 0 {
		return count, nil, nil
	}
	return count, &ts[0], nil
}

// ChatsStats returns the number of userID's chats and their latest updated_at
// (nil when the user has none).
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID)
	return latest(q, "updated_at")
}

// MessagesStats returns the number of messages in chatID and their latest
// updated_at (nil when the chat is empty).
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)
	return latest(q, "updated_at")
}

// PromptCacheStats returns the number of cached prompts and the newest
// created_at, which together change whenever the gallery changes.
func PromptCacheStats(ctx context.Context, db *gorm.DB) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.PromptCache{})
	return latest(q, "created_at")
}
