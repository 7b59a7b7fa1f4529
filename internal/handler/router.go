package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/security"
)

// SessionManager はルーターが必要とするセッション操作をまとめたインターフェース。
// session.Managerが実装する。
type SessionManager interface {
	middleware.SessionLoader
	SessionController
}

// ProfileManager はルーターが必要とするプロフィール操作をまとめたインターフェース。
// profile.Serviceが実装する。
type ProfileManager interface {
	ProfileEnsurer
	ProfileService
}

// PageRenderer は全ページの描画インターフェース。
// view.Rendererが実装する。
type PageRenderer interface {
	IndexRenderer
	ProfileRenderer
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker

	// 認証・セッション
	LoginFlow LoginFlow
	Sessions  SessionManager

	// プロフィール
	Profiles    ProfileManager
	Markup      security.MarkupDetector
	RateLimiter *middleware.RateLimiter
	CSRF        middleware.CSRFConfig

	// 表示
	Renderer PageRenderer

	// メトリクス
	Recorder       LoginRecorder
	StatusObserver middleware.StatusObserver
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → Session
//
// /profile はさらに RequireSession → CSRF を通し、POSTのみRateLimitを追加する。
// 未ログインでの/profileアクセスはCSRF検証より先にトップページへリダイレクトされる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrf := deps.CSRF
	if csrf.ErrorRenderer == nil {
		csrf.ErrorRenderer = deps.Renderer
	}

	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))
	r.Use(middleware.NewRecoveryMiddleware(deps.Renderer))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		StrictTransport: csrf.CookieSecure,
	}))
	r.Use(middleware.NewSessionMiddleware(deps.Sessions))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, deps.Renderer, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, deps.Renderer, http.StatusMethodNotAllowed, model.NewNotFoundError())
	})

	authHandler := NewAuthHandler(deps.LoginFlow, deps.Sessions, deps.Profiles, deps.Recorder, deps.Renderer)
	profileHandler := NewProfileHandler(deps.Profiles, deps.Markup, deps.Renderer)

	// --- 認証不要のルート ---
	r.Get("/", NewIndexHandler(deps.Renderer))
	r.Get("/login", authHandler.Login)
	r.Get("/authorize", authHandler.Authorize)
	r.Get("/logout", authHandler.Logout)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: RequireSession → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Use(middleware.NewCSRFMiddleware(csrf))

		r.Get("/profile", profileHandler.Show)
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.Middleware()).Post("/profile", profileHandler.Update)
		} else {
			r.Post("/profile", profileHandler.Update)
		}
	})

	return r
}
