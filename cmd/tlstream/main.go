// Command tlstream serves the streaming translation endpoint and manages its
// cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/cache"
	"github.com/ZaguanLabs/tlstream/internal/api"
	"github.com/ZaguanLabs/tlstream/internal/config"
	"github.com/ZaguanLabs/tlstream/internal/logging"
	"github.com/ZaguanLabs/tlstream/internal/tracing"
	"github.com/ZaguanLabs/tlstream/provider"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = tlstream.Version
	commit    = tlstream.GitCommit
	buildDate = tlstream.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "tlstream",
		Short: tlstream.Description,
		Long: `tlstream streams translations from an AI provider to the browser and
caches finished translations so repeated requests are replayed for free.

Example:
  tlstream serve --port 8787
  tlstream key "Hello" --source en --target ja
  tlstream cache export --output backup.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json, toml or env)")

	root.AddCommand(
		newServeCmd(&cfgFile),
		newKeyCmd(),
		newCacheCmd(&cfgFile),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(*cfgFile)
			if err != nil {
				return err
			}
			_ = v.BindPFlag("SERVER_HOST", cmd.Flags().Lookup("host"))
			_ = v.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))
			_ = v.BindPFlag("STREAM_PROTOCOL", cmd.Flags().Lookup("protocol"))
			_ = v.BindPFlag("PROVIDER", cmd.Flags().Lookup("provider"))

			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("host", "", "listen host (env SERVER_HOST)")
	cmd.Flags().String("port", "", "listen port (env SERVER_PORT)")
	cmd.Flags().String("protocol", "", "stream protocol: data or ui (env STREAM_PROTOCOL)")
	cmd.Flags().String("provider", "", "AI provider: openai, openai-responses, gemini or mock (env PROVIDER)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.IsDevelopment())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: tlstream.FullVersion(),
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	p, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	store, err := newStore(cfg.Cache, logger)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	translator := tlstream.NewTranslator(p,
		tlstream.WithCache(store),
		tlstream.WithTTL(cfg.Cache.TTL),
		tlstream.WithLogger(logger),
	)

	apiServer := api.NewServer(api.Options{
		Translator:         translator,
		Cache:              store,
		Protocol:           cfg.Server.StreamProtocol,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Development:        cfg.Server.IsDevelopment(),
		ServiceName:        cfg.Tracing.ServiceName,
		Logger:             logger,
	})

	addr := cfg.Server.Address()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("address", addr),
			zap.String("version", tlstream.FullVersion()),
			zap.String("provider", string(cfg.Provider.Type)),
			zap.String("protocol", string(cfg.Server.StreamProtocol)),
			zap.Bool("redis", cfg.Cache.RedisURL != ""),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// newStore selects redis when a URL is configured and the in-memory store
// otherwise.
func newStore(cfg config.CacheConfig, logger *zap.Logger) (tlstream.TranslationCache, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory cache")
		return cache.NewInMemoryStore(), nil
	}
	store, err := newRedisStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("using redis cache", zap.String("key_prefix", cfg.KeyPrefix))
	return store, nil
}

func newRedisStore(cfg config.CacheConfig, logger *zap.Logger) (*cache.RedisStore, error) {
	store, err := cache.NewRedisStore(cache.RedisConfig{
		URL:             cfg.RedisURL,
		KeyPrefix:       cfg.KeyPrefix,
		ConnectTimeout:  cfg.ConnectTimeout,
		OpTimeout:       cfg.OpTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating redis cache: %w", err)
	}
	return store, nil
}

func newKeyCmd() *cobra.Command {
	var source, target string

	cmd := &cobra.Command{
		Use:   "key <text>",
		Short: "Print the cache key for a translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), tlstream.DeriveKey(args[0], source, target))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source language code")
	cmd.Flags().StringVar(&target, "target", "", "target language code")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newCacheCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Export or import cached translations (redis only)",
	}
	cmd.AddCommand(newCacheExportCmd(cfgFile), newCacheImportCmd(cfgFile))
	return cmd
}

func newCacheExportCmd(cfgFile *string) *cobra.Command {
	var output, match string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write cached translations as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openCache(ctx, *cfgFile)
			if err != nil {
				return err
			}
			defer store.Close()

			metadata := map[string]string{"source": tlstream.Name, "version": tlstream.FullVersion()}
			exporter := cache.NewExporter(store)

			var n int
			if output == "" {
				n, err = exporter.Export(ctx, cmd.OutOrStdout(), match, metadata)
			} else {
				n, err = exporter.ExportToFile(ctx, output, match, metadata)
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&match, "match", "translate:*", "glob pattern of keys to export")
	return cmd
}

func newCacheImportCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load cached translations from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openCache(ctx, *cfgFile)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := cache.NewImporter(store).ImportFromFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d entries (%d failed)\n", result.Imported, result.Failed)
			return nil
		},
	}
}

// openCache connects to the configured redis. Unlike serving, maintenance
// commands fail when the cache is unreachable.
func openCache(ctx context.Context, cfgFile string) (*cache.RedisStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Cache.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required for cache maintenance")
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	store, err := newRedisStore(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return store, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", tlstream.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(out, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(out, "  built:   %s\n", buildDate)
			}
		},
	}
}
