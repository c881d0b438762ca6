package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kentaro/oddsboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionReader     middleware.SessionReader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusMetrics     middleware.StatusMetrics

	// 認証
	AuthService AuthServiceInterface
	StateCodec  StateCodecInterface
	AuthConfig  AuthHandlerConfig

	// Webhook
	WebhookService WebhookServiceInterface

	// データソース
	PredictionService PredictionServiceInterface
	WeatherClient     WeatherClientInterface
	NewsService       NewsServiceInterface

	// 運用
	DB             DBPinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → RateLimit
//
// セッションミドルウェアは注入のみ行い、認証を強制しない。
// コンテンツの出し分け（予測のロック等）は各ハンドラーが行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionReader))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusMetrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.StateCodec, deps.AuthConfig)
	webhookHandler := NewWebhookHandler(deps.WebhookService)
	predictionHandler := NewPredictionHandler(deps.PredictionService)
	weatherHandler := NewWeatherHandler(deps.WeatherClient)
	newsHandler := NewNewsHandler(deps.NewsService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 運用ルート（レート制限の外） ---
	r.Get("/healthz", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	// --- OAuthフロー（ログイン専用レート制限） ---
	r.Route("/oauth", func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Get("/init", authHandler.Init)
		r.Get("/callback", authHandler.Callback)
	})

	// --- APIルート（API全般レート制限） ---
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", authHandler.Session)
			r.Post("/logout", authHandler.Logout)
			r.Get("/logout", authHandler.Logout)
		})

		r.Route("/webhooks/whop", func(r chi.Router) {
			r.Post("/", webhookHandler.Receive)
			r.Get("/", webhookHandler.Verify)
		})

		r.Get("/predictions", predictionHandler.List)
		r.Get("/weather/game", weatherHandler.Game)
		r.Get("/news", newsHandler.List)
	})

	return r
}
