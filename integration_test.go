package tlstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/cache"
	"github.com/ZaguanLabs/tlstream/provider"
	"github.com/ZaguanLabs/tlstream/stream"
)

// Integration tests using all real components

func translate(t *testing.T, tr *tlstream.Translator, text, src, tgt string) (*tlstream.Result, string, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	result, err := tr.Translate(context.Background(), tlstream.TranslationRequest{
		Text:           text,
		SourceLanguage: src,
		TargetLanguage: tgt,
	}, stream.NewDataStreamWriter(rec))
	return result, rec.Body.String(), err
}

func TestIntegration_MissThenHit(t *testing.T) {
	p := provider.NewMockProvider()
	c := cache.NewInMemoryStore()
	translator := tlstream.NewTranslator(p, tlstream.WithCache(c))

	result1, body1, err := translate(t, translator, "Hello World", "en", "ja")
	if err != nil {
		t.Fatalf("first Translate failed: %v", err)
	}
	if result1.Cached {
		t.Error("first call should miss the cache")
	}
	if !strings.Contains(body1, "こんにちは") {
		t.Errorf("expected streamed translation, got: %s", body1)
	}

	result2, body2, err := translate(t, translator, "Hello World", "en", "ja")
	if err != nil {
		t.Fatalf("second Translate failed: %v", err)
	}
	if !result2.Cached {
		t.Error("second call should hit the cache")
	}
	if result2.Text != result1.Text {
		t.Errorf("cached text %q differs from streamed text %q", result2.Text, result1.Text)
	}
	if !strings.Contains(body2, `0:"こんにちは世界"`) {
		t.Errorf("expected a single replayed text part, got: %s", body2)
	}
	if p.CallCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", p.CallCount())
	}
}

func TestIntegration_RateLimitedNotCached(t *testing.T) {
	p := provider.NewMockProvider()
	p.Err = tlstream.NewProviderError("stream request failed", http.StatusTooManyRequests, nil)
	c := cache.NewInMemoryStore()
	translator := tlstream.NewTranslator(p, tlstream.WithCache(c))

	_, body, err := translate(t, translator, "Hello World", "en", "ja")
	if err == nil {
		t.Fatal("expected provider error")
	}
	if tlstream.ClassifyError(err) != tlstream.KindRateLimited {
		t.Errorf("expected rate_limited, got %s", tlstream.ClassifyError(err))
	}
	if !strings.Contains(body, tlstream.UserMessage(tlstream.KindRateLimited, "en")) {
		t.Errorf("expected rate limit message, got: %s", body)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestIntegration_SwappedLanguagesMiss(t *testing.T) {
	p := provider.NewMockProvider()
	c := cache.NewInMemoryStore()
	translator := tlstream.NewTranslator(p, tlstream.WithCache(c))

	forward, _, err := translate(t, translator, "Hello World", "en", "ja")
	if err != nil {
		t.Fatalf("forward Translate failed: %v", err)
	}

	back, _, err := translate(t, translator, forward.Text, "ja", "en")
	if err != nil {
		t.Fatalf("reverse Translate failed: %v", err)
	}
	if back.Key == forward.Key {
		t.Error("swapped language pair must produce a different key")
	}
	if back.Cached {
		t.Error("reverse translation should not be served from the forward entry")
	}
	if p.CallCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.CallCount())
	}
}

func TestIntegration_UnreachableRedisFailsOpen(t *testing.T) {
	store, err := cache.NewRedisStore(cache.RedisConfig{
		URL:            "redis://127.0.0.1:1/0",
		ConnectTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	p := provider.NewMockProvider()
	translator := tlstream.NewTranslator(p, tlstream.WithCache(store))

	for i := 0; i < 2; i++ {
		result, body, err := translate(t, translator, "Hello", "en", "ja")
		if err != nil {
			t.Fatalf("Translate %d failed: %v", i, err)
		}
		if result.Cached {
			t.Errorf("Translate %d: nothing can be cached without redis", i)
		}
		if !strings.Contains(body, "こんにちは") {
			t.Errorf("Translate %d: expected streamed text, got: %s", i, body)
		}
	}
	if p.CallCount() != 2 {
		t.Errorf("expected every request to reach the provider, got %d calls", p.CallCount())
	}
}
