package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/animai-studio/internal/config"
	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/http/middleware"
	"github.com/tbourn/animai-studio/internal/repo"
)

// --- fake workflow ---
type fakeInvoker struct {
	calls  atomic.Int32
	result domain.GenerationResult
	err    error
}

func (f *fakeInvoker) Invoke(context.Context, string) (domain.GenerationResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		GenerateRPS:    100,
		GenerateBurst:  100,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		Cache:          config.CacheConfig{HitDelay: 0, GalleryLimit: 50},
		Billing:        config.BillingConfig{Currency: "inr"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config, inv *fakeInvoker) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Invoker: inv}, cfg)
	return r, db
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), &fakeInvoker{})

	w := do(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg, &fakeInvoker{})

	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestGenerate_MissThenHit_AndGallery(t *testing.T) {
	inv := &fakeInvoker{result: domain.GenerationResult{VideoURL: "https://cdn/cat.mp4"}}
	r, _ := newTestRouter(t, testConfig(), inv)

	for i, path := range []string{"/generate", "/api/v1/generate"} {
		w := do(r, http.MethodPost, path, `{"prompt":"a cat"}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d body=%s", path, w.Code, w.Body.String())
		}
		var out struct {
			Success  bool   `json:"success"`
			Text     string `json:"text"`
			VideoURL string `json:"videoUrl"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if !out.Success || out.VideoURL != "https://cdn/cat.mp4" || out.Text != domain.DefaultSuccessText {
			t.Fatalf("unexpected body: %#v", out)
		}
		wantCache := []string{"MISS", "HIT"}[i]
		if got := w.Header().Get("X-Cache"); got != wantCache {
			t.Fatalf("%s X-Cache = %q, want %q", path, got, wantCache)
		}
	}
	if n := inv.calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}

	w := do(r, http.MethodGet, "/gallery", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("gallery = %d", w.Code)
	}
	var g struct {
		Success bool                 `json:"success"`
		Videos  []domain.PromptCache `json:"videos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !g.Success || len(g.Videos) != 1 || g.Videos[0].Prompt != "a cat" {
		t.Fatalf("unexpected gallery: %#v", g)
	}

	w = do(r, http.MethodGet, "/api/v1/gallery", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("gallery should be gzip-compressed when accepted")
	}
}

func TestGenerate_InvalidPromptAndUpstreamFailure(t *testing.T) {
	inv := &fakeInvoker{err: fmt.Errorf("workflow returned 503")}
	r, _ := newTestRouter(t, testConfig(), inv)

	w := do(r, http.MethodPost, "/generate", `{"prompt":""}`, nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid prompt provided") {
		t.Fatalf("invalid prompt -> %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/generate", `{"prompt":"a dog"}`, nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "workflow returned 503") {
		t.Fatalf("upstream failure -> %d %s", w.Code, w.Body.String())
	}
}

func TestGenerate_OwnRateLimitEnvelope(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateRPS = 0.1
	cfg.GenerateBurst = 1
	inv := &fakeInvoker{result: domain.GenerationResult{Text: "hello"}}
	r, _ := newTestRouter(t, cfg, inv)

	if w := do(r, http.MethodPost, "/generate", `{"prompt":"one"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := do(r, http.MethodPost, "/generate", `{"prompt":"two"}`, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "10" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Success || !strings.Contains(out.Error, "10s") {
		t.Fatalf("unexpected 429 body: %s", w.Body.String())
	}

	// The gallery is not behind the generate bucket.
	if w := do(r, http.MethodGet, "/gallery", "", nil); w.Code != http.StatusOK {
		t.Fatalf("gallery = %d", w.Code)
	}
}

func TestGenerate_NotMeteredByGlobalLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.1
	cfg.RateBurst = 1
	r, _ := newTestRouter(t, cfg, &fakeInvoker{result: domain.GenerationResult{Text: "hello"}})

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodPost, "/generate", fmt.Sprintf(`{"prompt":"p%d"}`, i), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("generate #%d = %d %s", i, w.Code, w.Body.String())
		}
	}

	if w := do(r, http.MethodGet, "/gallery", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first gallery = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/gallery", "", nil)
	if w.Code != http.StatusTooManyRequests || !strings.Contains(w.Body.String(), `"code":"rate_limited"`) {
		t.Fatalf("second gallery = %d %s", w.Code, w.Body.String())
	}
}

func TestChatFlow_CreatePostListDelete(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), &fakeInvoker{})
	user := map[string]string{"X-User-ID": "u1"}

	w := do(r, http.MethodPost, "/api/v1/chats", `{}`, user)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var ch domain.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &ch)

	msgs := "/api/v1/chats/" + ch.ID + "/messages"
	if w := do(r, http.MethodPost, msgs, `{"text":"a bouncing ball"}`, user); w.Code != http.StatusCreated {
		t.Fatalf("post = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, msgs, `{"text":"done","video_url":"https://cdn/b.mp4","is_response":true}`, user); w.Code != http.StatusCreated {
		t.Fatalf("post reply = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/v1/chats", "", user)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"title":"a bouncing ball"`) {
		t.Fatalf("list chats = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, msgs, "", user)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":2`) {
		t.Fatalf("list messages = %d %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodDelete, "/api/v1/chats/"+ch.ID, "", map[string]string{"X-User-ID": "u2"}); w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/chats/"+ch.ID, "", user); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
}

func TestIdempotentMessageReplay_BypassesRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.01
	cfg.RateBurst = 3
	r, _ := newTestRouter(t, cfg, &fakeInvoker{})
	user := map[string]string{"X-User-ID": "u1"}

	w := do(r, http.MethodPost, "/api/v1/chats", `{}`, user)
	var ch domain.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &ch)

	hdr := map[string]string{"X-User-ID": "u1", middleware.HeaderIdempotencyKey: "retry-1"}
	path := "/api/v1/chats/" + ch.ID + "/messages"
	if w := do(r, http.MethodPost, path, `{"text":"a kite"}`, hdr); w.Code != http.StatusCreated {
		t.Fatalf("first = %d", w.Code)
	}
	// Third token spent; the bucket is now empty for u1's IP.
	if w := do(r, http.MethodGet, "/health", "", user); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/health", "", user); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected limiter to trip, got %d", w.Code)
	}

	w = do(r, http.MethodPost, path, `{"text":"a kite"}`, hdr)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay = %d headers=%v", w.Code, w.Header())
	}
}

func TestBilling_PlansCheckoutDisabledAndNoStore(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), &fakeInvoker{})

	w := do(r, http.MethodGet, "/api/v1/billing/plans", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"team-plan"`) {
		t.Fatalf("plans = %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("billing responses must not be cached, Cache-Control=%q", cc)
	}

	w = do(r, http.MethodPost, "/api/v1/billing/checkout", `{"plan_id":"pro-plan"}`, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("checkout without gateway = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/billing/subscription", "", map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"tier":"free"`) {
		t.Fatalf("subscription = %d %s", w.Code, w.Body.String())
	}
}

func TestIdentity_BearerTokenWhenSecretConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AuthJWTSecret = "test-secret"
	r, db := newTestRouter(t, cfg, &fakeInvoker{})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-jwt",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(cfg.AuthJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	w := do(r, http.MethodPost, "/api/v1/chats", `{"title":"mine"}`, map[string]string{
		"Authorization": "Bearer " + tok,
		"X-User-ID":     "spoofed",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	n, _ := repo.CountChats(context.Background(), db, "user-jwt")
	if n != 1 {
		t.Fatalf("chat should belong to the token subject, count=%d", n)
	}

	w = do(r, http.MethodGet, "/api/v1/chats", "", map[string]string{"Authorization": "Bearer not-a-token"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}
}

func TestIdentity_HeaderCannotImpersonateWhenSecretConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AuthJWTSecret = "test-secret"
	r, _ := newTestRouter(t, cfg, &fakeInvoker{result: domain.GenerationResult{Text: "ok"}})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(cfg.AuthJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if w := do(r, http.MethodPost, "/api/v1/chats", `{"title":"private"}`, map[string]string{"Authorization": "Bearer " + tok}); w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}

	for _, path := range []string{"/api/v1/chats", "/api/v1/billing/subscription"} {
		w := do(r, http.MethodGet, path, "", map[string]string{"X-User-ID": "alice"})
		if w.Code != http.StatusUnauthorized || strings.Contains(w.Body.String(), "private") {
			t.Fatalf("GET %s with X-User-ID only = %d %s", path, w.Code, w.Body.String())
		}
	}

	w := do(r, http.MethodGet, "/api/v1/chats", "", map[string]string{"Authorization": "Bearer " + tok})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "private") {
		t.Fatalf("owner list = %d %s", w.Code, w.Body.String())
	}

	// Generation and the gallery stay open to anonymous callers.
	if w := do(r, http.MethodPost, "/generate", `{"prompt":"a cube"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous generate = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/gallery", "", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous gallery = %d", w.Code)
	}
}

func TestSwaggerRoute_WhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newTestRouter(t, cfg, &fakeInvoker{})

	if w := do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusOK {
		t.Fatalf("swagger = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "AnimAI Studio API") {
		t.Fatalf("doc.json = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRootBasePath_DoesNotDoubleMount(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/"
	r, _ := newTestRouter(t, cfg, &fakeInvoker{})

	if w := do(r, http.MethodGet, "/chats", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /chats = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/gallery", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /gallery = %d", w.Code)
	}
}

func Test_chatRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := chatRepoShim{}
	ctx := context.Background()

	c1, err := shim.CreateChat(ctx, db, "u1", "t1")
	if err != nil || c1 == nil || c1.Title != "t1" {
		t.Fatalf("CreateChat: %v %+v", err, c1)
	}
	if all, err := shim.ListChats(ctx, db, "u1"); err != nil || len(all) != 1 {
		t.Fatalf("ListChats: %v %d", err, len(all))
	}
	if err := shim.UpdateChatTitle(ctx, db, c1.ID, "u1", "t1-renamed"); err != nil {
		t.Fatalf("UpdateChatTitle: %v", err)
	}
	got, err := shim.GetChat(ctx, db, c1.ID, "u1")
	if err != nil || got.Title != "t1-renamed" {
		t.Fatalf("GetChat: %v %+v", err, got)
	}
	_, _ = shim.CreateChat(ctx, db, "u1", "t2")
	_, _ = shim.CreateChat(ctx, db, "u1", "t3")
	if n, err := shim.CountChats(ctx, db, "u1"); err != nil || n != 3 {
		t.Fatalf("CountChats: %v %d", err, n)
	}
	if page, err := shim.ListChatsPage(ctx, db, "u1", 0, 2); err != nil || len(page) != 2 {
		t.Fatalf("ListChatsPage: %v %d", err, len(page))
	}
	if err := shim.DeleteChat(ctx, db, c1.ID, "u1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if _, err := shim.GetChat(ctx, db, c1.ID, "u1"); err == nil {
		t.Fatalf("chat should be gone")
	}
}
