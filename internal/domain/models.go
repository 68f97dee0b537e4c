// Package domain defines the persistence models for chat sessions, messages,
// the prompt cache, and user profiles. These types are mapped with GORM and
// form the core data layer of the studio backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Chat represents a conversation session owned by a user. Each session has a
// title derived from its first prompt and contains the prompts and replies
// exchanged with the animation generator.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the session owner; indexed for efficient retrieval.
//   - Title: human-readable title ("New chat" until the first prompt).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Chat struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"   gorm:"type:varchar(64);not null;index:idx_user_chats"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is a single entry of a chat transcript: either the user's prompt
// (IsResponse=false) or the generator's reply. Replies may carry a video URL;
// failed generations are stored with IsError set so history renders them as
// errors.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID: foreign key to the owning chat (indexed).
//   - Text: prompt, reply text, or error text.
//   - VideoURL: generated artifact link (replies only, may be empty).
//   - IsResponse / IsError: author and outcome flags.
//   - Chat: FK association, ensures cascade delete/update.
type Message struct {
	ID         string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	ChatID     string         `json:"chat_id"             gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Text       string         `json:"text"                gorm:"type:text;not null"`
	VideoURL   string         `json:"video_url,omitempty" gorm:"type:text"`
	IsResponse bool           `json:"is_response"         gorm:"not null;default:false"`
	IsError    bool           `json:"is_error"            gorm:"not null;default:false"`
	CreatedAt  time.Time      `json:"created_at"          gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"                   gorm:"index"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// PromptCache maps an exact prompt string to a previously generated video.
// The prompt is the primary key, so there is at most one entry per distinct
// prompt; writers upsert on conflict and the last write wins.
type PromptCache struct {
	Prompt    string    `json:"prompt"     gorm:"type:text;primaryKey"`
	VideoURL  string    `json:"video_url"  gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_prompt_cache_created"`
}

// TableName returns the database table name for PromptCache.
func (PromptCache) TableName() string { return "prompt_cache" }

// Subscription tiers stored on Profile.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierTeam       = "team"
	TierEnterprise = "enterprise"
)

// Profile carries per-user billing state.
type Profile struct {
	UserID               string    `json:"user_id"                          gorm:"type:varchar(64);primaryKey"`
	Email                string    `json:"email"                            gorm:"type:varchar(320)"`
	StripeCustomerID     string    `json:"stripe_customer_id,omitempty"     gorm:"type:varchar(64);index"`
	SubscriptionTier     string    `json:"subscription_tier"                gorm:"type:varchar(16);not null;default:'free'"`
	StripeSubscriptionID string    `json:"stripe_subscription_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }
