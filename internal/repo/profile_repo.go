// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for billing profiles.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/animai-studio/internal/domain"
)

// GetProfile returns the profile of userID, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile returns the profile of userID, creating a free-tier row when
// none exists. Concurrent callers converge on the same row.
func EnsureProfile(ctx context.Context, db *gorm.DB, userID, email string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{
		UserID:           userID,
		Email:            email,
		SubscriptionTier: domain.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, userID)
}

// SetStripeCustomer records the payment-provider customer id for userID.
func SetStripeCustomer(ctx context.Context, db *gorm.DB, userID, customerID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"stripe_customer_id": customerID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
