package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/animai-studio/internal/cache"
	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/services"
)

type stubGallerySvc struct {
	items  []domain.PromptCache
	err    error
	count  int64
	newest time.Time
	// withStats makes Stats succeed; otherwise it reports ErrNoStats.
	withStats bool
}

func (s stubGallerySvc) Recent(context.Context) ([]domain.PromptCache, error) { return s.items, s.err }

func (s stubGallerySvc) Stats(context.Context) (int64, time.Time, error) {
	if !s.withStats {
		return 0, time.Time{}, services.ErrNoStats
	}
	return s.count, s.newest, nil
}

func galleryRouter(svc GalleryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(Services{Gallery: svc})
	r := gin.New()
	r.GET("/gallery", h.Gallery)
	return r
}

func TestGallery_NewestFirstFromSQLStore(t *testing.T) {
	db := newChatDB(t)
	store := cache.NewSQLStore(db)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		row := domain.PromptCache{Prompt: fmt.Sprintf("p%d", i), VideoURL: fmt.Sprintf("https://cdn/%d.mp4", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	r := galleryRouter(&services.GalleryService{Store: store, DB: db})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out GalleryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !out.Success || len(out.Videos) != 3 || out.Videos[0].Prompt != "p2" || out.Videos[2].Prompt != "p0" {
		t.Fatalf("unexpected gallery: %#v", out)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("etag -> %d", w.Code)
	}
}

func TestGallery_EmptyListIsNotOmitted(t *testing.T) {
	w := httptest.NewRecorder()
	galleryRouter(stubGallerySvc{items: []domain.PromptCache{}}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"success":true,"videos":[]}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestGallery_StoreFailure(t *testing.T) {
	w := httptest.NewRecorder()
	galleryRouter(stubGallerySvc{err: errors.New("relation prompt_cache does not exist")}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var out GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Success || out.Error != "relation prompt_cache does not exist" {
		t.Fatalf("unexpected body: %#v", out)
	}
}

func TestGallery_ETagComesFromStats(t *testing.T) {
	newest := time.UnixMilli(1_720_000_000_000).UTC()
	svc := stubGallerySvc{items: []domain.PromptCache{}, count: 7, newest: newest, withStats: true}

	w := httptest.NewRecorder()
	galleryRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	if got, want := w.Header().Get("ETag"), `W/"gallery:7:1720000000000"`; got != want {
		t.Fatalf("ETag = %q; want %q", got, want)
	}

	// Without stats the listing is still served, just without an ETag.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	req.Header.Set("If-None-Match", `W/"gallery:7:1720000000000"`)
	galleryRouter(stubGallerySvc{items: []domain.PromptCache{}}).ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("ETag") != "" {
		t.Fatalf("status=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}
