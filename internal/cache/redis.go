package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/animai-studio/internal/domain"
)

var tracer = otel.Tracer("cache/redis")

const keyPrefix = "animai:prompt_cache:"

// NewRedisClient parses a redis:// URL and verifies the server answers PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisFront is a read-through Store layered over Next. Lookups consult
// Redis first and fill it from Next on a miss. Concurrent misses for the same
// prompt share one backing lookup.
type RedisFront struct {
	Next Store
	RDB  redis.Cmdable
	TTL  time.Duration

	group singleflight.Group
}

// NewRedisFront wraps next with a Redis read-through layer.
func NewRedisFront(next Store, rdb redis.Cmdable, ttl time.Duration) *RedisFront {
	return &RedisFront{Next: next, RDB: rdb, TTL: ttl}
}

// key hashes the prompt so arbitrary text becomes a bounded key. Hashing is
// injective for practical purposes, so exact-match semantics are preserved.
func key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return keyPrefix + hex.EncodeToString(sum[:])
}

type lookupResult struct {
	url   string
	found bool
}

// Lookup implements Store.
func (f *RedisFront) Lookup(ctx context.Context, prompt string) (string, bool, error) {
	k := key(prompt)
	ctx, span := tracer.Start(ctx, "cache.Lookup", trace.WithAttributes(attribute.String("cache.key", k)))
	defer span.End()

	val, err := f.RDB.Get(ctx, k).Result()
	switch {
	case err == nil && val != "":
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, true, nil
	case err != nil && !errors.Is(err, redis.Nil):
		span.RecordError(err)
		log.Warn().Err(err).Msg("redis prompt cache get failed; falling back to store")
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, _ := f.group.Do(k, func() (any, error) {
		url, found, err := f.Next.Lookup(ctx, prompt)
		return lookupResult{url: url, found: found}, err
	})
	if err != nil {
		return "", false, err
	}
	res := v.(lookupResult)
	if res.found {
		f.fill(ctx, k, res.url)
	}
	return res.url, res.found, nil
}

// Save implements Store. Redis is refreshed only after the backing write
// succeeded.
func (f *RedisFront) Save(ctx context.Context, prompt, videoURL string) error {
	if err := f.Next.Save(ctx, prompt, videoURL); err != nil {
		return err
	}
	f.fill(ctx, key(prompt), videoURL)
	return nil
}

// Recent implements Store. The gallery always reads the backing store.
func (f *RedisFront) Recent(ctx context.Context, limit int) ([]domain.PromptCache, error) {
	return f.Next.Recent(ctx, limit)
}

func (f *RedisFront) fill(ctx context.Context, k, url string) {
	if err := f.RDB.Set(ctx, k, url, f.TTL).Err(); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		log.Warn().Err(err).Msg("redis prompt cache set failed")
	}
}
