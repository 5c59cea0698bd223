package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/tweetstream/internal/middleware"
	"github.com/hitoshi/tweetstream/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	TrustProxy        bool // trueの場合のみX-Forwarded-For/X-Real-IPをクライアントIPとして使う
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder // nilの場合はメトリクスを記録しない

	// サービス
	AuthService         AuthServiceInterface
	TweetService        TweetServiceInterface
	UserService         UserServiceInterface
	NotificationService NotificationServiceInterface

	// 運用エンドポイント
	Health         HealthDeps
	LiveHandler    http.Handler // GET /socket。nilの場合はルートを登録しない
	MetricsHandler http.Handler // GET /metrics。nilの場合はルートを登録しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → [RealIP] → Logging → Recovery → SecurityHeaders → CORS
//	/api 以下: RateLimit(IP) → [Auth → RateLimit(Write)]
//
// /health、/metrics、/socket はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPRecorder))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	tweetHandler := NewTweetHandler(deps.TweetService)
	userHandler := NewUserHandler(deps.UserService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)

	requireAuth := middleware.NewAuthMiddleware(deps.Authenticator, deps.Logger)
	writeLimit := deps.RateLimiter.WriteMiddleware()

	r.Get("/health", NewHealthHandler(deps.Health, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.LiveHandler != nil {
		r.Method(http.MethodGet, "/socket", deps.LiveHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.IPMiddleware())

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/verify", authHandler.Verify)
		})

		// ツイート
		r.Route("/tweets", func(r chi.Router) {
			r.Get("/", tweetHandler.List)
			r.Get("/public", tweetHandler.Public)
			r.With(requireAuth).Get("/feed", tweetHandler.Feed)
			r.Get("/{id}", tweetHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, writeLimit)
				r.Post("/", tweetHandler.Create)
				r.Post("/{id}/like", tweetHandler.ToggleLike)
				r.Post("/{id}/retweet", tweetHandler.ToggleRetweet)
				r.Delete("/{id}", tweetHandler.Delete)
			})
		})

		// ユーザー
		r.Route("/users", func(r chi.Router) {
			r.Get("/search", userHandler.Search)
			r.Get("/profile/{username}", userHandler.Profile)
			r.Get("/{userId}/followers", userHandler.Followers)
			r.Get("/{userId}/following", userHandler.Following)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, writeLimit)
				r.Put("/profile", userHandler.UpdateProfile)
				r.Post("/follow/{userId}", userHandler.Follow)
				r.Delete("/follow/{userId}", userHandler.Unfollow)
			})
		})

		// 通知
		r.Route("/notifications", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notificationHandler.List)
			r.Get("/stats", notificationHandler.Stats)
			r.Put("/read-all", notificationHandler.MarkAllRead)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Delete("/{id}", notificationHandler.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "ROUTE_NOT_FOUND",
			Message:  "Route not found",
			Category: model.CategoryNotFound,
		})
	})

	return r
}
