// Package api exposes the translation endpoint over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/stream"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Pinger is implemented by caches that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	Translator         *tlstream.Translator
	Cache              tlstream.TranslationCache // only used for health reporting
	Protocol           stream.Protocol
	CORSAllowedOrigins []string
	Development        bool
	ServiceName        string
	Logger             *zap.Logger
}

// Server routes HTTP requests to the translator.
type Server struct {
	router     *gin.Engine
	logger     *zap.Logger
	translator *tlstream.Translator
	cache      tlstream.TranslationCache
	protocol   stream.Protocol
}

// NewServer creates a server with all middleware and routes installed.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = tlstream.Name
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery())
	router.Use(GinLogger(logger))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = opts.Development
	router.Use(secure.New(secureConfig))

	s := &Server{
		router:     router,
		logger:     logger,
		translator: opts.Translator,
		cache:      opts.Cache,
		protocol:   opts.Protocol,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/completion", s.handleCompletion)
	api.GET("/languages", s.handleLanguages)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept"}
	cfg.ExposeHeaders = []string{"X-Vercel-AI-Data-Stream", "x-vercel-ai-ui-message-stream"}
	cfg.MaxAge = 12 * time.Hour

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// GinLogger returns a gin middleware for logging using zap.
func GinLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
