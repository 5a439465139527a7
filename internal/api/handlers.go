package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/stream"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// completionRequest is the body the completion UI posts.
type completionRequest struct {
	Prompt     string `json:"prompt"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

// handleCompletion streams a translation of the posted prompt.
func (s *Server) handleCompletion(c *gin.Context) {
	var body completionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req := tlstream.TranslationRequest{
		Text:           body.Prompt,
		SourceLanguage: body.SourceLang,
		TargetLanguage: body.TargetLang,
	}

	var validationErr *tlstream.ValidationError
	if err := req.Validate(); errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
		return
	}

	w := stream.NewWriter(s.protocol, c.Writer)
	result, err := s.translator.Translate(c.Request.Context(), req, w)
	switch {
	case errors.Is(err, tlstream.ErrAborted):
		s.logger.Debug("client went away mid-stream", zap.Error(err))
	case err != nil:
		// Already reported to the client as a sanitized error part.
		_ = c.Error(err)
	default:
		s.logger.Debug("translation streamed",
			zap.String("key", result.Key),
			zap.Bool("cached", result.Cached),
			zap.Int("output_length", len(result.Text)),
		)
	}
}

// handleLanguages lists the languages the UI can offer.
func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": tlstream.SupportedLanguages()})
}

// handleHealth reports liveness. The cache state is informational only:
// the service keeps working when the cache is down.
func (s *Server) handleHealth(c *gin.Context) {
	cacheState := "none"
	switch cache := s.cache.(type) {
	case nil:
	case Pinger:
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(ctx); err != nil {
			cacheState = "down"
		} else {
			cacheState = "up"
		}
	default:
		cacheState = "memory"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"cache":   cacheState,
		"version": tlstream.FullVersion(),
	})
}
