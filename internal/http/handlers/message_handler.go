// Message HTTP handlers.
//
// This file exposes the transcript endpoints of a chat session:
//   - POST /chats/{id}/messages   (append a prompt, reply or error entry)
//   - GET  /chats/{id}/messages   (list paginated messages for a chat)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and an earlier write with
// the same key stored a message for (user, chat, key), the handler returns
// that message with `Idempotency-Replayed: true` instead of writing again.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/http/middleware"
	"github.com/tbourn/animai-studio/internal/repo"
	"github.com/tbourn/animai-studio/internal/services"
)

//
// DTOs
//

// PostMessageRequest is one transcript entry. Prompts have IsResponse=false;
// replies carry the generated VideoURL; failed generations set IsError.
type PostMessageRequest struct {
	Text       string `json:"text" binding:"required" example:"A paper plane looping over a city at dusk"`
	VideoURL   string `json:"video_url,omitempty" example:"https://cdn.example.com/renders/abc.mp4"`
	IsResponse bool   `json:"is_response"`
	IsError    bool   `json:"is_error"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of chat messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses blank-line runs and trims.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// maxTextRunes reports the configured entry limit for error messages.
func maxTextRunes(msgSvc MessageService) int {
	if ms, ok := msgSvc.(*services.MessageService); ok && ms.MaxTextRunes > 0 {
		return ms.MaxTextRunes
	}
	return 0
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a transcript entry
// @Description Stores a prompt, reply or error entry in a chat. The first prompt of a
// @Description session retitles it. Supports replay via the Idempotency-Key header.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID that owns the chat"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Transcript entry"
//
// @Success     201  {object}  handlers.PostMessageResponse  "Stored message"
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, valid := validChatID(c)
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	uid := userID(c)
	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && middleware.IsReplay(c) {
		if prev, err := h.msgSvc.Replay(ctx, uid, chatID, idemKey); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, PostMessageResponse{Message: prev})
			return
		}
	}

	m, err := h.msgSvc.Save(ctx, uid, chatID, services.MessageInput{
		Text:       sanitizeContent(req.Text),
		VideoURL:   req.VideoURL,
		IsResponse: req.IsResponse,
		IsError:    req.IsError,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d runes", maxTextRunes(h.msgSvc)))
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		}
		return
	}

	if hasKey {
		if err := h.msgSvc.Remember(ctx, uid, chatID, idemKey, m.ID, http.StatusCreated); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("chat_id", chatID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a paginated transcript in display order. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID that owns the chat"  example(user123)
// @Param       id         path   string  true  "Chat ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, valid := validChatID(c)
	if !valid {
		return
	}
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// The ETag reveals transcript size, so ownership is checked first.
	var db *gorm.DB
	if svc, ok := h.msgSvc.(*services.MessageService); ok {
		db = svc.DB
	}
	if db != nil {
		if _, err := repo.GetChat(ctx, db, chatID, uid); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
				return
			}
		} else if count, maxTS, err := repo.MessagesStats(ctx, db, chatID); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMilli()
			}
			if notModified(c, fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, chatID, count, ts, page, pageSize)) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, uid, chatID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}
