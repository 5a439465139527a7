// Package config loads service configuration from the environment, an
// optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaguanLabs/tlstream"
	"github.com/ZaguanLabs/tlstream/provider"
	"github.com/ZaguanLabs/tlstream/stream"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Provider provider.Config
	Tracing  TracingConfig
}

type ServerConfig struct {
	Host               string
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration // 0 disables the write deadline, required for long streams
	ShutdownTimeout    time.Duration
	AppEnv             string
	LogLevel           string
	CORSAllowedOrigins []string
	StreamProtocol     stream.Protocol
}

type CacheConfig struct {
	RedisURL        string // empty selects the in-memory store
	TTL             time.Duration
	ConnectTimeout  time.Duration
	OpTimeout       time.Duration
	KeyPrefix       string
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Defaults applied before the environment and config files are read.
var defaults = map[string]interface{}{
	"SERVER_HOST":            "0.0.0.0",
	"SERVER_PORT":            "8787",
	"READ_TIMEOUT":           "15s",
	"WRITE_TIMEOUT":          "0",
	"SHUTDOWN_TIMEOUT":       "10s",
	"APP_ENV":                "production",
	"LOG_LEVEL":              "info",
	"CORS_ALLOWED_ORIGINS":   "*",
	"STREAM_PROTOCOL":        string(stream.ProtocolData),
	"REDIS_URL":              "",
	"CACHE_TTL":              "604800",
	"CACHE_CONNECT_TIMEOUT":  "5s",
	"CACHE_OP_TIMEOUT":       "2s",
	"CACHE_KEY_PREFIX":       "",
	"CACHE_BREAKER_FAILURES": 3,
	"CACHE_BREAKER_COOLDOWN": "30s",
	"PROVIDER":               string(provider.TypeOpenAI),
	"MODEL":                  "",
	"TEMPERATURE":            provider.DefaultTemperature,
	"MAX_TOKENS":             provider.DefaultMaxTokens,
	"PROVIDER_RPM":           0,
	"PROVIDER_RPM_MAX_WAIT":  "10s",
	"PROVIDER_MAX_RETRIES":   0,
	"OTEL_ENABLED":           false,
	"OTEL_SERVICE_NAME":      "tlstream",
}

// NewViper returns a viper instance with defaults set, the environment bound
// and, when present, .env and configFile merged in.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading .env: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", configFile)
			}
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return v, nil
}

// Load reads configuration from the environment, .env and configFile.
func Load(configFile string) (*Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	var errs []error
	duration := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("SERVER_HOST"),
			Port:               v.GetString("SERVER_PORT"),
			ReadTimeout:        duration("READ_TIMEOUT"),
			WriteTimeout:       duration("WRITE_TIMEOUT"),
			ShutdownTimeout:    duration("SHUTDOWN_TIMEOUT"),
			AppEnv:             strings.ToLower(v.GetString("APP_ENV")),
			LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			StreamProtocol:     stream.Protocol(strings.ToLower(v.GetString("STREAM_PROTOCOL"))),
		},
		Cache: CacheConfig{
			RedisURL:        v.GetString("REDIS_URL"),
			TTL:             duration("CACHE_TTL"),
			ConnectTimeout:  duration("CACHE_CONNECT_TIMEOUT"),
			OpTimeout:       duration("CACHE_OP_TIMEOUT"),
			KeyPrefix:       v.GetString("CACHE_KEY_PREFIX"),
			BreakerFailures: v.GetUint32("CACHE_BREAKER_FAILURES"),
			BreakerCooldown: duration("CACHE_BREAKER_COOLDOWN"),
		},
		Provider: provider.Config{
			Type:                provider.Type(strings.ToLower(v.GetString("PROVIDER"))),
			Model:               v.GetString("MODEL"),
			Temperature:         float32(v.GetFloat64("TEMPERATURE")),
			MaxTokens:           v.GetInt("MAX_TOKENS"),
			OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
			OpenAIBaseURL:       v.GetString("OPENAI_BASE_URL"),
			CloudflareAccountID: v.GetString("CF_ACCOUNT_ID"),
			GatewayID:           v.GetString("AI_GATEWAY_ID"),
			GeminiAPIKey:        v.GetString("GEMINI_API_KEY"),
			GeminiBaseURL:       v.GetString("GEMINI_BASE_URL"),
			RequestsPerMinute:   v.GetInt("PROVIDER_RPM"),
			RateLimitMaxWait:    duration("PROVIDER_RPM_MAX_WAIT"),
			MaxRetries:          v.GetInt("PROVIDER_MAX_RETRIES"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT: invalid port %q", c.Server.Port))
	}
	switch c.Server.StreamProtocol {
	case stream.ProtocolData, stream.ProtocolUI:
	default:
		errs = append(errs, fmt.Errorf("STREAM_PROTOCOL: must be %q or %q, got %q",
			stream.ProtocolData, stream.ProtocolUI, c.Server.StreamProtocol))
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = tlstream.DefaultTTL
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("TEMPERATURE: must be between 0 and 2, got %v", c.Provider.Temperature))
	}
	if c.Provider.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("PROVIDER_RPM: must not be negative"))
	}
	if c.Provider.RateLimitMaxWait < 0 {
		errs = append(errs, errors.New("PROVIDER_RPM_MAX_WAIT: must not be negative"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("PROVIDER_MAX_RETRIES: must not be negative"))
	}

	return errors.Join(errs...)
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// IsDevelopment reports whether the service runs in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// parseDuration accepts Go duration strings ("15s") and bare integers, which
// are read as seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
