// Package services – MessageService
//
// MessageService owns the transcript of a chat session. The client saves
// every entry it shows: the user's prompt, the generator's reply (text and
// optional video URL) or the error text of a failed generation.
//
// The first prompt saved into a session that still has the default title
// renames the session after the prompt: its first 50 runes, with "..." when
// longer.
//
// Observability: public methods are OpenTelemetry-instrumented with chat and
// user identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/repo"
)

// MessageInput is a transcript entry submitted by a client.
type MessageInput struct {
	Text       string
	VideoURL   string
	IsResponse bool
	IsError    bool
}

// MessageService persists and lists transcript entries.
type MessageService struct {
	DB *gorm.DB

	// MaxTextRunes rejects longer entries; 0 disables the check.
	MaxTextRunes int
	// TitleRunes is how much of the first prompt becomes the session title.
	TitleRunes int
	// ReplayTTL bounds how long an Idempotency-Key can be replayed.
	ReplayTTL time.Duration
}

// NewMessageService returns a MessageService with the studio defaults.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{DB: db, MaxTextRunes: 10000, TitleRunes: 50, ReplayTTL: 24 * time.Hour}
}

// Save appends one entry to a chat owned by userID.
func (s *MessageService) Save(ctx context.Context, userID, chatID string, in MessageInput) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Save",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
			attribute.Bool("message.is_response", in.IsResponse),
		),
	)
	defer span.End()

	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(in.Text) > s.MaxTextRunes {
		return nil, ErrTooLong
	}

	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	var saved *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		firstPrompt := false
		if !in.IsResponse && chat.Title == defaultTitle {
			n, err := repo.CountUserMessages(ctx, tx, chatID)
			if err != nil {
				return err
			}
			firstPrompt = n == 0
		}

		m, err := repo.CreateMessage(ctx, tx, repo.NewMessage{
			ChatID:     chatID,
			Text:       in.Text,
			VideoURL:   strings.TrimSpace(in.VideoURL),
			IsResponse: in.IsResponse,
			IsError:    in.IsError,
		})
		if err != nil {
			return err
		}
		saved = m

		if firstPrompt {
			return repo.UpdateChatTitle(ctx, tx, chatID, userID, s.sessionTitle(in.Text))
		}
		return repo.TouchChat(ctx, tx, chatID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return saved, nil
}

// ListPage returns a page of a chat's transcript in display order.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrChatNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}

// Replay returns the message an earlier request with key produced, or
// ErrMessageNotFound when there is nothing to replay.
func (s *MessageService) Replay(ctx context.Context, userID, chatID, key string) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, chatID, key, time.Now().UTC())
	if err != nil {
		return nil, ErrMessageNotFound
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// Remember records that key produced messageID. A concurrent duplicate is
// not an error.
func (s *MessageService) Remember(ctx context.Context, userID, chatID, key, messageID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, chatID, key, messageID, status, s.ReplayTTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// sessionTitle derives a session title from the first prompt.
func (s *MessageService) sessionTitle(prompt string) string {
	n := s.TitleRunes
	if n <= 0 {
		n = 50
	}
	t := normalizeTitle(prompt)
	if utf8.RuneCountInString(t) > n {
		return clipRunes(t, n) + "..."
	}
	return t
}
