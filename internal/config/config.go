package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Auth provider
	ProviderURL     string        `env:"SUPABASE_URL,required,notEmpty"`
	AnonKey         string        `env:"SUPABASE_ANON_KEY,required,notEmpty"`
	ServiceRoleKey  string        `env:"SUPABASE_SERVICE_ROLE_KEY,required,notEmpty"` // サーバー専用。レスポンスやログに出力しないこと
	JWTSecret       string        `env:"SUPABASE_JWT_SECRET"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// Signup
	StrictBackfill      bool `env:"SIGNUP_STRICT_BACKFILL" envDefault:"false"`
	BackfillMaxAttempts int  `env:"SIGNUP_BACKFILL_MAX_ATTEMPTS" envDefault:"3"`

	// Worker
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`

	// Rate Limit（req/min/IP）
	RateLimitAuth int `env:"RATE_LIMIT_AUTH" envDefault:"20"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定・空の場合はenv.AggregateErrorでまとめて返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", cfg.ReconcileInterval)
	}

	if cfg.BackfillMaxAttempts < 1 {
		cfg.BackfillMaxAttempts = 1
	}
	cfg.ProviderURL = strings.TrimRight(cfg.ProviderURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
