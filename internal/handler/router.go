package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/ridehub/internal/metrics"
	"github.com/hitoshi/ridehub/internal/middleware"
	"github.com/hitoshi/ridehub/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 可観測性
	Logger         *slog.Logger
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthCookies AuthCookieWriter

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  → /api/v1: CSRF
//	    → 公開ルート: RateLimit(General, IP単位)
//	    → 保護ルート: Auth → RateLimit(General, ユーザー単位) → RequireRole（必要な場合）
//
// /health と /metrics はAPIのミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, model.NewRouteNotFoundError())
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthCookies)
	userHandler := NewUserHandler(deps.UserService)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)
	adminOnly := middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

			r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh-token", authHandler.RefreshToken)
			r.Post("/auth/logout", authHandler.Logout)

			r.Post("/user/register", userHandler.Register)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.With(adminOnly).Get("/user/all-users", userHandler.GetAllUsers)
			r.Get("/user/me", userHandler.GetMe)
			r.With(adminOnly).Get("/user/{id}", userHandler.GetSingleUser)
			r.Patch("/user/{id}", userHandler.UpdateUser)
		})
	})

	return r
}
