// Chat HTTP handlers.
//
// This file declares the service contracts the HTTP layer depends on, the
// Handlers wiring, and the chat session endpoints:
//   - POST   /chats               (create)
//   - GET    /chats               (list, paginated, ETag support)
//   - PUT    /chats/{id}/title    (rename)
//   - DELETE /chats/{id}          (delete with transcript)
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/http/middleware"
	"github.com/tbourn/animai-studio/internal/repo"
	"github.com/tbourn/animai-studio/internal/services"
	"github.com/tbourn/animai-studio/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService manages chat sessions owned by a user.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	Delete(ctx context.Context, userID, chatID string) error
}

// MessageService stores and lists transcript entries and backs idempotent
// replays of message writes.
type MessageService interface {
	Save(ctx context.Context, userID, chatID string, in services.MessageInput) (*domain.Message, error)
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Replay(ctx context.Context, userID, chatID, key string) (*domain.Message, error)
	Remember(ctx context.Context, userID, chatID, key, messageID string, status int) error
}

// GenerationService turns a prompt into an animation.
type GenerationService interface {
	Generate(ctx context.Context, prompt string) (domain.Outcome, error)
}

// GalleryService lists recent cached generations.
type GalleryService interface {
	Recent(ctx context.Context) ([]domain.PromptCache, error)
	// Stats feeds the gallery ETag; an error skips conditional handling.
	Stats(ctx context.Context) (count int64, newest time.Time, err error)
}

// BillingService sells subscriptions.
type BillingService interface {
	Plans() []domain.Plan
	Checkout(ctx context.Context, userID, email, planID string) (string, error)
	Subscription(ctx context.Context, userID string) (services.Subscription, error)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Nil members leave the
// corresponding routes unusable; the router only mounts what is present.
type Services struct {
	Chats      ChatService
	Messages   MessageService
	Generation GenerationService
	Gallery    GalleryService
	Billing    BillingService
}

// Handlers groups the HTTP endpoints of the studio.
type Handlers struct {
	chatSvc    ChatService
	msgSvc     MessageService
	genSvc     GenerationService
	gallerySvc GalleryService
	billingSvc BillingService
}

// New constructs Handlers bound to svcs.
func New(svcs Services) *Handlers {
	return &Handlers{
		chatSvc:    svcs.Chats,
		msgSvc:     svcs.Messages,
		genSvc:     svcs.Generation,
		gallerySvc: svcs.Gallery,
		billingSvc: svcs.Billing,
	}
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title optionally sets the chat title; "New chat" is used when empty.
	Title string `json:"title" example:"Bouncing logo ideas"`
}

// UpdateChatTitleRequest is the JSON payload for updating a chat title.
type UpdateChatTitleRequest struct {
	// Title is the new chat name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Product launch teaser"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// userID resolves the caller: verified token subject, X-User-ID, demo-user.
func userID(c *gin.Context) string { return middleware.UserID(c) }

// clampPagination reads page and page_size (default 20, max 100).
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.PageParams(c.Query("page"), c.Query("page_size"), 20, 100)
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// notModified sets a weak ETag and reports whether If-None-Match matches it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	return inm != "" && inm == etag
}

func validChatID(c *gin.Context) (string, bool) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return chatID, true
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a new chat
// @Description Creates a chat session for the current user.
// @Tags        Chats
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (development header)"  example(user123)
// @Param       body       body    handlers.CreateChatRequest  true  "Create chat payload"
//
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.chatSvc.Create(c.Request.Context(), userID(c), strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of the user's chats, newest first. Supports weak ETag via If-None-Match.
// @Tags        Chats
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (development header)"  example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"    example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                   minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"                minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListChatsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	var db *gorm.DB
	if svc, ok := h.chatSvc.(*services.ChatService); ok {
		db = svc.DB
	}
	if db != nil {
		if count, maxTS, err := repo.ChatsStats(ctx, db, uid); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMilli()
			}
			if notModified(c, fmt.Sprintf(`W/"chats:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.chatSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: newPagination(page, pageSize, total)})
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Description Updates the title of a chat owned by the current user.
// @Tags        Chats
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (development header)"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateChatTitleRequest  true  "New title"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	chatID, valid := validChatID(c)
	if !valid {
		return
	}

	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	err := h.chatSvc.UpdateTitle(c.Request.Context(), userID(c), chatID, req.Title)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat
// @Description Deletes a chat owned by the current user together with its messages.
// @Tags        Chats
//
// @Param       X-User-ID  header  string  false "User ID (development header)"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	chatID, valid := validChatID(c)
	if !valid {
		return
	}

	err := h.chatSvc.Delete(c.Request.Context(), userID(c), chatID)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
	}
}
