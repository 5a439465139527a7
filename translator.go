package tlstream

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrAborted is returned when the client went away before the translation
// finished. Nothing is cached for an aborted translation.
var ErrAborted = errors.New("translation aborted")

// Translator is the completion orchestrator: it decides between replaying a
// cached translation and streaming a new one from the provider.
type Translator struct {
	provider AIProvider
	cache    TranslationCache
	ttl      time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// AIProvider is the interface for streaming model backends.
//
// StreamCompletion calls onDelta for every piece of generated text, in order,
// and returns the final completion. If onDelta returns an error the provider
// must stop reading and return it.
type AIProvider interface {
	StreamCompletion(ctx context.Context, req CompletionRequest, onDelta func(TextDelta) error) (*Completion, error)
}

// CompletionRequest contains the parameters for one provider call.
type CompletionRequest struct {
	SystemPrompt string
	Prompt       string
	SourceLang   string
	TargetLang   string
}

// TranslationCache is the interface for translation caching. Implementations
// are fail-open: Get reports a miss on any failure and Set drops failed writes.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// StreamWriter frames translation output for the client.
type StreamWriter interface {
	WriteDelta(delta TextDelta) error
	WriteError(message string) error
	Finish(info FinishInfo) error
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithCache sets the translation cache.
func WithCache(cache TranslationCache) TranslatorOption {
	return func(t *Translator) {
		t.cache = cache
	}
}

// WithTTL overrides how long finished translations are cached.
func WithTTL(ttl time.Duration) TranslatorOption {
	return func(t *Translator) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) TranslatorOption {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTranslator creates a new Translator backed by provider.
func NewTranslator(provider AIProvider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		provider: provider,
		ttl:      DefaultTTL,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/ZaguanLabs/tlstream"),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Translate runs one translation request, writing output to w.
//
// On a cache hit the cached text is written as a single delta. On a miss the
// provider output is forwarded delta by delta and the full text is cached once
// the provider finishes. Provider failures are written to w as a sanitized
// message and returned; cache failures are never returned.
func (t *Translator) Translate(ctx context.Context, req TranslationRequest, w StreamWriter) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Key()

	ctx, span := t.tracer.Start(ctx, "tlstream.Translate", trace.WithAttributes(
		attribute.String("translation.source_lang", req.SourceLanguage),
		attribute.String("translation.target_lang", req.TargetLanguage),
		attribute.Int("translation.input_length", len(req.Text)),
	))
	defer span.End()

	if t.cache != nil {
		if cached, ok := t.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return t.replay(ctx, key, cached, w)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err := t.generate(ctx, req, key, w)
	if err != nil && !errors.Is(err, ErrAborted) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ClassifyError(err)))
	}
	return result, err
}

// replay emits a cached translation as one completed stream.
func (t *Translator) replay(ctx context.Context, key, text string, w StreamWriter) (*Result, error) {
	t.logger.Debug("serving cached translation", zap.String("key", key))

	if err := w.WriteDelta(TextDelta{Text: text}); err != nil {
		return nil, errors.Join(ErrAborted, err)
	}
	if err := w.Finish(FinishInfo{Reason: FinishReasonStop, Cached: true}); err != nil {
		return nil, errors.Join(ErrAborted, err)
	}

	return &Result{Key: key, Text: text, Cached: true}, nil
}

// generate streams a fresh translation from the provider.
func (t *Translator) generate(ctx context.Context, req TranslationRequest, key string, w StreamWriter) (*Result, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		full     strings.Builder
		writeErr error
	)

	completion, err := t.provider.StreamCompletion(genCtx, CompletionRequest{
		SystemPrompt: BuildSystemPrompt(req.SourceLanguage, req.TargetLanguage),
		Prompt:       req.Text,
		SourceLang:   req.SourceLanguage,
		TargetLang:   req.TargetLanguage,
	}, func(delta TextDelta) error {
		if delta.Text == "" {
			return nil
		}
		full.WriteString(delta.Text)
		if err := w.WriteDelta(delta); err != nil {
			writeErr = err
			cancel()
			return err
		}
		return nil
	})

	// A gone client is not a provider failure; stop without caching.
	if writeErr != nil || ctx.Err() != nil {
		cause := writeErr
		if cause == nil {
			cause = ctx.Err()
		}
		t.logger.Info("translation aborted by client",
			zap.String("source_lang", req.SourceLanguage),
			zap.String("target_lang", req.TargetLanguage),
			zap.Int("streamed_length", full.Len()),
			zap.Error(cause),
		)
		return nil, errors.Join(ErrAborted, cause)
	}

	if err != nil {
		kind := ClassifyError(err)
		t.logger.Error("translation failed",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("source_lang", req.SourceLanguage),
			zap.String("target_lang", req.TargetLanguage),
			zap.Int("input_length", len(req.Text)),
			zap.Time("timestamp", t.now()),
		)
		if werr := w.WriteError(UserMessage(kind, req.SourceLanguage)); werr != nil {
			t.logger.Debug("failed to write error part", zap.Error(werr))
		}
		return nil, err
	}

	text := full.String()
	if text != "" && t.cache != nil {
		t.cache.Set(context.WithoutCancel(ctx), key, text, t.ttl)
	}

	info := FinishInfo{Reason: FinishReasonStop}
	if completion != nil {
		info.Usage = completion.Usage
		if completion.FinishReason != "" {
			info.Reason = completion.FinishReason
		}
	}
	if err := w.Finish(info); err != nil {
		t.logger.Debug("failed to write finish part", zap.Error(err))
	}

	return &Result{Key: key, Text: text}, nil
}
