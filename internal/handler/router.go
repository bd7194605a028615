package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/telemetry"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Guard             middleware.AccessChecker
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	// サインアップ
	SignupService SignupServiceInterface

	// 認証フロー
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アカウント参照
	AccountService AccountServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したハンドラーを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// サインイン・サインアップ系はIP単位のレート制限、Cookie認証で状態を変える
// /auth/reset-password と /auth/logout はCSRF検証を追加で通す。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(m))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	signupHandler := NewSignupHandler(deps.SignupService)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	homeHandler := NewHomeHandler(deps.AccountService)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.RateLimiter == nil {
			return h
		}
		return deps.RateLimiter.Middleware()(h)
	}

	// --- 運用 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- カスタムサインアップ ---
	// 全メソッドを受け付け、メソッド検証はハンドラーで行う。
	// レート制限はPOSTのみに掛け、他のメソッドは常に405を返す。
	// Handleで全メソッドを登録した後にPOSTだけを上書きする。
	r.Handle("/custom-signup", http.HandlerFunc(signupHandler.CustomSignup))
	r.Method(http.MethodPost, "/custom-signup", limited(signupHandler.CustomSignup))

	// --- 認証フロー ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/", authHandler.AuthPage)
		r.Get("/verify", authHandler.VerifyPage)
		r.Get("/callback", authHandler.Callback)
		r.Get("/me", authHandler.Me)

		r.Method(http.MethodPost, "/signin", limited(authHandler.SignIn))
		r.Method(http.MethodPost, "/signup", limited(authHandler.SignUp))
		r.Method(http.MethodPost, "/resend-verification", limited(authHandler.ResendVerification))

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
			r.Post("/reset-password", authHandler.ResetPassword)
			r.Post("/logout", authHandler.Logout)
		})
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// --- 保護された画面・API ---
	r.With(middleware.NewRedirectUnauthenticated(deps.Guard, auth.PathSignIn)).Get("/home", homeHandler.Home)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireSession(deps.Guard))
		r.Get("/api/profile", homeHandler.Profile)
		r.Get("/api/subscription", homeHandler.Subscription)
	})

	return otelhttp.NewHandler(r, telemetry.ServiceName,
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	)
}
