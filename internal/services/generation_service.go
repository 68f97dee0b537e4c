// Package services – GenerationService
//
// GenerationService runs the prompt-to-animation flow behind POST /generate:
//
//	cache lookup ─hit─▶ fixed delay ─▶ cached URL
//	     │
//	    miss ─▶ workflow call ─▶ non-animation reply? ─yes─▶ text only
//	                                   │
//	                                   no ─▶ upsert cache ─▶ URL + text
//
// Cache failures never fail a request: a lookup error is a miss and a write
// error is logged. Workflow failures are fatal for the request.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/animai-studio/internal/cache"
	"github.com/tbourn/animai-studio/internal/domain"
)

// Invoker runs one generation on the remote workflow.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (domain.GenerationResult, error)
}

// GenerationService coordinates the cache and the workflow.
type GenerationService struct {
	Cache   cache.Store
	Invoker Invoker

	// HitDelay is waited before a cached result is returned.
	HitDelay time.Duration

	// Sleep waits for d or until ctx is done. Nil means sleepCtx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerationService wires a GenerationService with the real clock.
func NewGenerationService(store cache.Store, inv Invoker, hitDelay time.Duration) *GenerationService {
	return &GenerationService{Cache: store, Invoker: inv, HitDelay: hitDelay, Sleep: sleepCtx}
}

// Generate returns the animation for prompt. The prompt is used verbatim as
// the cache key.
func (s *GenerationService) Generate(ctx context.Context, prompt string) (domain.Outcome, error) {
	ctx, span := otel.Tracer("services/GenerationService").Start(ctx, "Generate",
		trace.WithAttributes(attribute.Int("prompt.len", len(prompt))),
	)
	defer span.End()

	if prompt == "" {
		return domain.Outcome{}, ErrEmptyPrompt
	}
	lg := logFor(ctx)

	url, found, err := s.Cache.Lookup(ctx, prompt)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		lg.Warn().Err(err).Msg("prompt cache lookup failed; treating as miss")
	case found:
		cacheLookups.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		if err := s.sleep(ctx, s.HitDelay); err != nil {
			generationRequests.WithLabelValues("error").Inc()
			return domain.Outcome{}, err
		}
		generationRequests.WithLabelValues("cached").Inc()
		return domain.Outcome{Text: domain.DefaultSuccessText, VideoURL: url, Cached: true}, nil
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	start := time.Now()
	res, err := s.Invoker.Invoke(ctx, prompt)
	upstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		generationRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow")
		return domain.Outcome{}, err
	}

	if res.IsNonAnimation() {
		generationRequests.WithLabelValues("non_animation").Inc()
		return domain.Outcome{Text: res.NonAnimationReply}, nil
	}

	if res.VideoURL != "" {
		if err := s.Cache.Save(ctx, prompt, res.VideoURL); err != nil {
			lg.Warn().Err(err).Msg("prompt cache write failed")
		}
	}

	text := res.Text
	if text == "" {
		text = domain.DefaultSuccessText
	}
	generationRequests.WithLabelValues("generated").Inc()
	return domain.Outcome{Text: text, VideoURL: res.VideoURL}, nil
}

func (s *GenerationService) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// sleepCtx blocks for d, returning early with ctx.Err() on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("cached result delay interrupted"), ctx.Err())
	}
}
