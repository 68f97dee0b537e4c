package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/animai-studio/internal/domain"
)

// ----- Fakes -----

type fakeStore struct {
	mu        sync.Mutex
	entries   map[string]string
	lookupErr error
	saveErr   error
	saves     []string
}

func newFakeStore() *fakeStore { return &fakeStore{entries: map[string]string{}} }

func (f *fakeStore) Lookup(_ context.Context, prompt string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return "", false, f.lookupErr
	}
	v, ok := f.entries[prompt]
	return v, ok && v != "", nil
}

func (f *fakeStore) Save(_ context.Context, prompt, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, prompt)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.entries[prompt] = url
	return nil
}

func (f *fakeStore) Recent(context.Context, int) ([]domain.PromptCache, error) { return nil, nil }

type fakeInvoker struct {
	res     domain.GenerationResult
	err     error
	calls   int
	prompts []string
}

func (f *fakeInvoker) Invoke(_ context.Context, prompt string) (domain.GenerationResult, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.res, f.err
}

type recordedSleep struct{ waits []time.Duration }

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newGen(store *fakeStore, inv *fakeInvoker, rec *recordedSleep) *GenerationService {
	return &GenerationService{Cache: store, Invoker: inv, HitDelay: 60 * time.Second, Sleep: rec.sleep}
}

// ----- Tests -----

func TestGenerate_MissInvokesAndCaches(t *testing.T) {
	store := newFakeStore()
	inv := &fakeInvoker{res: domain.GenerationResult{VideoURL: "https://x/a.mp4", Text: "done"}}
	rec := &recordedSleep{}
	s := newGen(store, inv, rec)

	baseMiss := testutil.ToFloat64(cacheLookups.WithLabelValues("miss"))
	baseGen := testutil.ToFloat64(generationRequests.WithLabelValues("generated"))

	out, err := s.Generate(context.Background(), "a cat playing piano")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := domain.Outcome{Text: "done", VideoURL: "https://x/a.mp4"}
	if out != want {
		t.Fatalf("outcome = %+v; want %+v", out, want)
	}
	if store.entries["a cat playing piano"] != "https://x/a.mp4" {
		t.Fatalf("result not cached: %+v", store.entries)
	}
	if len(rec.waits) != 0 {
		t.Fatalf("a miss must not wait, got %v", rec.waits)
	}
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("miss")); got != baseMiss+1 {
		t.Fatalf("miss counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(generationRequests.WithLabelValues("generated")); got != baseGen+1 {
		t.Fatalf("generated counter = %v; want %v", got, baseGen+1)
	}
}

func TestGenerate_HitWaitsAndSkipsUpstream(t *testing.T) {
	store := newFakeStore()
	store.entries["a cat playing piano"] = "https://x/a.mp4"
	inv := &fakeInvoker{}
	rec := &recordedSleep{}
	s := newGen(store, inv, rec)

	out, err := s.Generate(context.Background(), "a cat playing piano")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := domain.Outcome{Text: domain.DefaultSuccessText, VideoURL: "https://x/a.mp4", Cached: true}
	if out != want {
		t.Fatalf("outcome = %+v; want %+v", out, want)
	}
	if inv.calls != 0 {
		t.Fatalf("upstream called on cache hit")
	}
	if len(rec.waits) != 1 || rec.waits[0] != 60*time.Second {
		t.Fatalf("expected one 60s wait, got %v", rec.waits)
	}
}

func TestGenerate_SecondIdenticalPromptHits(t *testing.T) {
	store := newFakeStore()
	inv := &fakeInvoker{res: domain.GenerationResult{VideoURL: "https://x/a.mp4"}}
	rec := &recordedSleep{}
	s := newGen(store, inv, rec)
	ctx := context.Background()

	if _, err := s.Generate(ctx, "p"); err != nil {
		t.Fatalf("first: %v", err)
	}
	out, err := s.Generate(ctx, "p")
	if err != nil || !out.Cached || out.VideoURL != "https://x/a.mp4" {
		t.Fatalf("second = %+v, %v", out, err)
	}
	if inv.calls != 1 {
		t.Fatalf("upstream calls = %d; want 1", inv.calls)
	}
	// Near-identical prompts are distinct keys.
	if _, err := s.Generate(ctx, "P"); err != nil {
		t.Fatalf("variant: %v", err)
	}
	if inv.calls != 2 {
		t.Fatalf("case variant should miss; calls = %d", inv.calls)
	}
}

func TestGenerate_NonAnimationReplyWins(t *testing.T) {
	store := newFakeStore()
	inv := &fakeInvoker{res: domain.GenerationResult{
		VideoURL:          "https://x/should-not-appear.mp4",
		Text:              "ignored",
		NonAnimationReply: "I can only create animations.",
	}}
	s := newGen(store, inv, &recordedSleep{})

	out, err := s.Generate(context.Background(), "what's the weather?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != (domain.Outcome{Text: "I can only create animations."}) {
		t.Fatalf("outcome = %+v", out)
	}
	if len(store.saves) != 0 {
		t.Fatalf("non-animation replies must not be cached")
	}
}

func TestGenerate_DefaultTextAndNoVideo(t *testing.T) {
	store := newFakeStore()
	s := newGen(store, &fakeInvoker{}, &recordedSleep{})

	out, err := s.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != domain.DefaultSuccessText || out.VideoURL != "" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(store.saves) != 0 {
		t.Fatalf("nothing to cache without a video URL")
	}
}

func TestGenerate_CacheFailuresAreNotFatal(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = errors.New("db locked")
	store.saveErr = errors.New("db locked")
	inv := &fakeInvoker{res: domain.GenerationResult{VideoURL: "https://x/a.mp4"}}
	s := newGen(store, inv, &recordedSleep{})

	baseErr := testutil.ToFloat64(cacheLookups.WithLabelValues("error"))

	out, err := s.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.VideoURL != "https://x/a.mp4" || out.Text != domain.DefaultSuccessText {
		t.Fatalf("outcome = %+v", out)
	}
	if inv.calls != 1 || len(store.saves) != 1 {
		t.Fatalf("calls=%d saves=%d", inv.calls, len(store.saves))
	}
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("error")); got != baseErr+1 {
		t.Fatalf("error counter = %v; want %v", got, baseErr+1)
	}
}

func TestGenerate_UpstreamErrorIsFatal(t *testing.T) {
	store := newFakeStore()
	inv := &fakeInvoker{err: errors.New("workflow returned status 502")}
	s := newGen(store, inv, &recordedSleep{})

	if _, err := s.Generate(context.Background(), "p"); err == nil || err.Error() != "workflow returned status 502" {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(store.saves) != 0 {
		t.Fatalf("failed generations must not be cached")
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	inv := &fakeInvoker{}
	s := newGen(newFakeStore(), inv, &recordedSleep{})
	if _, err := s.Generate(context.Background(), ""); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if inv.calls != 0 {
		t.Fatalf("upstream called for empty prompt")
	}
}

func TestGenerate_HitDelayHonoursCancellation(t *testing.T) {
	store := newFakeStore()
	store.entries["p"] = "https://x/a.mp4"
	s := NewGenerationService(store, &fakeInvoker{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := s.Generate(ctx, "p")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancellation did not interrupt the delay")
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("zero delay: %v", err)
	}
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("short delay: %v", err)
	}
}
