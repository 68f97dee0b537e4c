// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, identity, correlation IDs, logging/redaction, panic recovery,
// metrics, compression, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/animai-studio/docs"
	"github.com/tbourn/animai-studio/internal/cache"
	"github.com/tbourn/animai-studio/internal/config"
	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/http/handlers"
	"github.com/tbourn/animai-studio/internal/http/middleware"
	"github.com/tbourn/animai-studio/internal/repo"
	"github.com/tbourn/animai-studio/internal/services"
)

// chatRepoShim adapts the repository free functions to the services.ChatRepo
// interface expected by the ChatService.
type chatRepoShim struct{}

func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, title)
}

func (chatRepoShim) ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return repo.ListChats(ctx, db, userID)
}

func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id, userID)
}

func (chatRepoShim) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, userID, title)
}

func (chatRepoShim) DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteChat(ctx, db, id, userID)
}

func (chatRepoShim) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}

func (chatRepoShim) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}

// Deps are the collaborators built by the entrypoint.
type Deps struct {
	DB *gorm.DB
	// Cache fronts prompt_cache; nil means a plain SQL store over DB.
	Cache cache.Store
	// Invoker runs the remote generation workflow.
	Invoker services.Invoker
	// Payments is nil when no payment provider is configured.
	Payments services.PaymentGateway
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: verify bearer tokens (when a secret is configured)
//  4. ScopedLogger + RedactingLogger: request logger and access log
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Gzip
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.AuthJWTSecret != "" {
		r.Use(middleware.Identity(cfg.AuthJWTSecret))
	}
	r.Use(middleware.ScopedLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"Stripe-Signature"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	))

	rl := middleware.NewRateLimiter("api", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	// /generate is metered by its own bucket below.
	rl.Skip = isGenerateRoute
	r.Use(rl.Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/cache/workflow/payments
	store := deps.Cache
	if store == nil {
		store = cache.NewSQLStore(db)
	}
	msgSvc := services.NewMessageService(db)
	msgSvc.ReplayTTL = cfg.IdempotencyTTL

	h := handlers.New(handlers.Services{
		Chats:      services.NewChatService(db, chatRepoShim{}),
		Messages:   msgSvc,
		Generation: services.NewGenerationService(store, deps.Invoker, cfg.Cache.HitDelay),
		Gallery:    &services.GalleryService{Store: store, DB: db, Limit: cfg.Cache.GalleryLimit},
		Billing: &services.BillingService{
			DB:      db,
			Gateway: deps.Payments,
			Catalog: services.DefaultPlans(cfg.Billing.Currency),
		},
	})

	// Generation is expensive upstream; it gets its own, tighter bucket and
	// answers in the {success,error} envelope the web client reads.
	genRL := middleware.NewRateLimiter("generate", cfg.GenerateRPS, cfg.GenerateBurst, middleware.KeyByUserOrIP())
	genRL.Reject = func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, handlers.GenerateResponse{
			Success: false,
			Error:   "Too many requests. Please wait " + strconv.Itoa(retryAfterSeconds(c)) + "s and try again.",
		})
	}

	mountStudio := func(g *gin.RouterGroup) {
		g.POST("/generate", genRL.Handler(), h.Generate)
		g.GET("/gallery", h.Gallery)
	}
	mountStudio(r.Group(""))

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	if apiBase != "/" {
		mountStudio(api)
	}

	// History and billing belong to a user; with a secret configured they
	// need a verified token.
	owned := api.Group("", middleware.RequireIdentity())
	{
		// Chats
		owned.POST("/chats", h.CreateChat)
		owned.GET("/chats", h.ListChats)
		owned.PUT("/chats/:id/title", h.UpdateChatTitle)
		owned.DELETE("/chats/:id", h.DeleteChat)

		// Messages
		owned.GET("/chats/:id/messages", h.ListMessages)
		owned.POST("/chats/:id/messages", h.PostMessage)
	}

	billing := owned.Group("/billing", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	{
		billing.GET("/plans", h.ListPlans)
		billing.POST("/checkout", h.Checkout)
		billing.GET("/subscription", h.GetSubscription)
	}
}

func isGenerateRoute(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/generate")
}

// retryAfterSeconds reads back the Retry-After header set by the limiter.
func retryAfterSeconds(c *gin.Context) int {
	n, err := strconv.Atoi(c.Writer.Header().Get("Retry-After"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// useCORS installs the CORS posture: allow all when no origins are
// configured, otherwise echo allow-listed origins.
func useCORS(r *gin.Engine, origins []string) {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "X-Cache", "Idempotency-Replayed"}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    exposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
