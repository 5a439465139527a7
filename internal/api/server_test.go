package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/cache"
	"github.com/ZaguanLabs/tlstream/provider"
	"github.com/ZaguanLabs/tlstream/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *Server
	provider *provider.MockProvider
	cache    *cache.InMemoryStore
}

func newTestEnv(t *testing.T, protocol stream.Protocol) *testEnv {
	t.Helper()
	p := provider.NewMockProvider()
	c := cache.NewInMemoryStore()
	translator := tlstream.NewTranslator(p, tlstream.WithCache(c))

	return &testEnv{
		server: NewServer(Options{
			Translator:         translator,
			Cache:              c,
			Protocol:           protocol,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		}),
		provider: p,
		cache:    c,
	}
}

func (e *testEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/completion", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCompletion_MissThenHit(t *testing.T) {
	env := newTestEnv(t, stream.ProtocolData)
	body := `{"prompt":"Good morning, how are you?","sourceLang":"en","targetLang":"ja"}`

	first := env.post(t, body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "v1", first.Header().Get("X-Vercel-AI-Data-Stream"))
	assert.Contains(t, first.Body.String(), `0:"おはようございます、お元気ですか？"`)
	assert.Contains(t, first.Body.String(), `d:{"finishReason":"stop"`)
	assert.Equal(t, 1, env.provider.CallCount())

	key := tlstream.DeriveKey("Good morning, how are you?", "en", "ja")
	cached, ok := env.cache.Get(context.Background(), key)
	require.True(t, ok, "translation should be cached after a successful stream")
	assert.Equal(t, "おはようございます、お元気ですか？", cached)

	second := env.post(t, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `0:"おはようございます、お元気ですか？"`)
	assert.Equal(t, 1, env.provider.CallCount(), "cache hit must not call the provider")
}

func TestCompletion_ProviderRateLimited(t *testing.T) {
	env := newTestEnv(t, stream.ProtocolData)
	env.provider.Err = tlstream.NewProviderError("OpenAI stream request failed", http.StatusTooManyRequests,
		errors.New("Rate limit reached for gpt-4.1-nano in organization org-secret"))

	rec := env.post(t, `{"prompt":"Hello","sourceLang":"en","targetLang":"ja"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `3:"`+tlstream.UserMessage(tlstream.KindRateLimited, "en")+`"`)
	assert.NotContains(t, rec.Body.String(), "org-secret")
	assert.Zero(t, env.cache.Len(), "failed translations must not be cached")
}

func TestCompletion_UIMessageProtocol(t *testing.T) {
	env := newTestEnv(t, stream.ProtocolUI)

	rec := env.post(t, `{"prompt":"Hello","sourceLang":"en","targetLang":"ja"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream"))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
	assert.Contains(t, rec.Body.String(), `"delta":"こんにちは"`)
	assert.Contains(t, rec.Body.String(), "[DONE]")
}

func TestCompletion_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"invalid json", `{"prompt":`, ""},
		{"empty prompt", `{"prompt":"   ","sourceLang":"en","targetLang":"ja"}`, "prompt"},
		{"missing source", `{"prompt":"Hello","targetLang":"ja"}`, "sourceLang"},
		{"missing target", `{"prompt":"Hello","sourceLang":"en"}`, "targetLang"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, stream.ProtocolData)

			rec := env.post(t, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			if tt.field != "" {
				assert.Equal(t, tt.field, resp["field"])
			}
			assert.Zero(t, env.provider.CallCount())
		})
	}
}

func TestLanguages(t *testing.T) {
	env := newTestEnv(t, stream.ProtocolData)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/languages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Languages []tlstream.Language `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Languages, len(tlstream.LanguageNames))
	assert.Contains(t, resp.Languages, tlstream.Language{Code: "ja", Name: "Japanese", Direction: "ltr"})
}

type pingCache struct {
	tlstream.TranslationCache
	err error
}

func (p pingCache) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		cache tlstream.TranslationCache
		want  string
	}{
		{"no cache", nil, "none"},
		{"memory", cache.NewInMemoryStore(), "memory"},
		{"redis up", pingCache{TranslationCache: cache.NewInMemoryStore()}, "up"},
		{"redis down", pingCache{TranslationCache: cache.NewInMemoryStore(), err: errors.New("refused")}, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Options{
				Translator: tlstream.NewTranslator(provider.NewMockProvider()),
				Cache:      tt.cache,
			})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp["status"])
			assert.Equal(t, tt.want, resp["cache"])
		})
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, stream.ProtocolData)

	req := httptest.NewRequest(http.MethodOptions, "/api/completion", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/completion", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompletion_ClientDisconnect(t *testing.T) {
	p := provider.NewMockProvider()
	p.Delay = 50 * time.Millisecond
	c := cache.NewInMemoryStore()
	srv := NewServer(Options{Translator: tlstream.NewTranslator(p, tlstream.WithCache(c))})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/completion",
		strings.NewReader(`{"prompt":"Good morning, how are you?","sourceLang":"en","targetLang":"ja"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Zero(t, c.Len(), "aborted translations must not be cached")
	assert.NotContains(t, rec.Body.String(), "3:")
}
