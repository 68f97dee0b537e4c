// Package services – ChatService
//
// ChatService manages chat sessions: creation, paginated listing, renaming
// and deletion. Titles are NFC-normalized, whitespace-collapsed and clipped
// here; the automatic title set from a session's first prompt is applied by
// MessageService.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/repo"
)

const (
	// defaultTitle is stored for sessions created without a title; such
	// sessions are renamed from their first prompt.
	defaultTitle = "New chat"
	// untitled replaces a blank title on rename.
	untitled = "Untitled"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error)
	ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error)
	GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error)
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)
}

// ChatService provides chat-level operations and enforces ownership.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewChatService constructs a ChatService; titles are capped to the column width.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{DB: db, Repo: r, TitleMaxLen: 255}
}

// Create inserts a new chat owned by userID. A blank title becomes "New chat".
func (s *ChatService) Create(ctx context.Context, userID, title string) (*domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitle
	}
	return s.Repo.CreateChat(ctx, s.DB, userID, s.clip(title))
}

// List returns all chats for a user (non-paginated).
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.Repo.ListChats(ctx, s.DB, userID)
}

// ListPage returns a page of chats for a user, newest first, and the total.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateTitle renames a chat owned by userID. A blank title becomes "Untitled".
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = untitled
	}
	if _, err := s.Repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, s.clip(title))
}

// Delete removes a chat owned by userID together with its transcript.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	err := s.Repo.DeleteChat(ctx, s.DB, chatID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrChatNotFound
	}
	return err
}

func (s *ChatService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

// clipRunes truncates s to at most n runes; n <= 0 disables clipping.
func clipRunes(s string, n int) string {
	if n > 0 && utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n])
	}
	return s
}

// normalizeTitle NFC-normalizes, trims and collapses whitespace, so clipping
// never splits a combining sequence that has a composed form.
func normalizeTitle(s string) string {
	s = norm.NFC.String(s)
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
