package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Chat{}).TableName():        "chats",
		(Message{}).TableName():     "messages",
		(PromptCache{}).TableName(): "prompt_cache",
		(Profile{}).TableName():     "profiles",
		(Idempotency{}).TableName(): "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Chat{}, &Message{}, &PromptCache{}, &Profile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Chat{}, &Message{}, &PromptCache{}, &Profile{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Chat{}, "idx_user_chats") {
		t.Fatalf("expected index idx_user_chats on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected index idx_chat_msgs on messages")
	}
	if !m.HasIndex(&PromptCache{}, "idx_prompt_cache_created") {
		t.Fatalf("expected index idx_prompt_cache_created on prompt_cache")
	}

	now := time.Now().UTC()
	if err := db.Create(&Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	msgs := []Message{
		{ID: "m1", ChatID: "c1", Text: "draw a circle", CreatedAt: now},
		{ID: "m2", ChatID: "c1", Text: "done", VideoURL: "https://x/a.mp4", IsResponse: true, CreatedAt: now.Add(time.Second)},
	}
	for i := range msgs {
		if err := db.Create(&msgs[i]).Error; err != nil {
			t.Fatalf("insert %s: %v", msgs[i].ID, err)
		}
	}

	// CASCADE: deleting the chat should delete its messages
	if err := db.Unscoped().Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages after chat delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete when chat deleted, got count=%d", cnt)
	}
}

func TestPromptCache_PrimaryKeyIsPrompt(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&PromptCache{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	if err := db.Create(&PromptCache{Prompt: "spin a cube", VideoURL: "https://x/1.mp4", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Same prompt again violates the key; a case variant does not.
	if err := db.Create(&PromptCache{Prompt: "spin a cube", VideoURL: "https://x/2.mp4", CreatedAt: now}).Error; err == nil {
		t.Fatalf("expected primary key violation for duplicate prompt")
	}
	if err := db.Create(&PromptCache{Prompt: "Spin a cube", VideoURL: "https://x/3.mp4", CreatedAt: now}).Error; err != nil {
		t.Fatalf("case variant should be a distinct key: %v", err)
	}
}

func TestProfile_DefaultTier(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Profile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&Profile{UserID: "u1", Email: "a@b.c"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got Profile
	if err := db.First(&got, "user_id = ?", "u1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.SubscriptionTier != TierFree {
		t.Fatalf("default tier = %q, want %q", got.SubscriptionTier, TierFree)
	}
}

func TestGenerationResult_IsNonAnimation(t *testing.T) {
	if (GenerationResult{VideoURL: "https://x/a.mp4"}).IsNonAnimation() {
		t.Fatalf("video-only result must not be a non-animation reply")
	}
	if !(GenerationResult{VideoURL: "https://x/a.mp4", NonAnimationReply: "hi"}).IsNonAnimation() {
		t.Fatalf("non-animation reply should be detected")
	}
}
