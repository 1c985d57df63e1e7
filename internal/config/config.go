package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	DatabaseMaxOpenConns  int
	DatabaseMaxIdleConns  int
	DatabaseConnLifetime  time.Duration
	DatabaseSlowQuery     time.Duration
	CORSAllowOrigins      string
	RedisURL              string
	NATSURL               string
	NotificationChannel   string
	NotificationKeepAlive time.Duration
	JWTSecret             string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	OpenAIMaxTokens       int
	TrackingCacheTTL      time.Duration
	AIRateLimit           int
	AIRateWindow          time.Duration
	SeedEnabled           bool
	SeedToken             string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIEnabled reports whether an AI evaluator can be constructed.
func (c Config) AIEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Program API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("notification.channel", "gema:program")
	v.SetDefault("notification.keepalive", "30s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("tracking.cache_ttl", "2m")
	v.SetDefault("ai.rate_limit", 10)
	v.SetDefault("ai.rate_window", "1m")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("cors.allow_origins", "*")

	trackingTTL, err := parseDuration(v, "tracking.cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "notification.keepalive", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "ai.rate_window", time.Minute)
	if err != nil {
		return Config{}, err
	}
	connLifetime, err := parseDuration(v, "database.conn_lifetime", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	slowQuery, err := parseDuration(v, "database.slow_query", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		DatabaseMaxOpenConns:  v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:  v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:  connLifetime,
		DatabaseSlowQuery:     slowQuery,
		CORSAllowOrigins:      v.GetString("cors.allow_origins"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		NotificationChannel:   v.GetString("notification.channel"),
		NotificationKeepAlive: keepAlive,
		JWTSecret:             v.GetString("jwt.secret"),
		OpenAIAPIKey:          v.GetString("openai.api_key"),
		OpenAIModel:           v.GetString("openai.model"),
		OpenAIBaseURL:         v.GetString("openai.base_url"),
		OpenAIMaxTokens:       v.GetInt("openai.max_tokens"),
		TrackingCacheTTL:      trackingTTL,
		AIRateLimit:           v.GetInt("ai.rate_limit"),
		AIRateWindow:          rateWindow,
		SeedEnabled:           v.GetBool("seed.enabled"),
		SeedToken:             v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.SeedEnabled && strings.TrimSpace(cfg.SeedToken) == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}
	if cfg.AIRateLimit <= 0 {
		cfg.AIRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
