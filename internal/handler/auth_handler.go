// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/auth"
	"github.com/hitoshi/profilekeeper/internal/metrics"
	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/model"
)

// LoginFlow はOIDCログインフローのインターフェース。
// auth.Clientが実装する。
type LoginFlow interface {
	BuildAuthorizationRedirect(w http.ResponseWriter) (string, error)
	CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.Claims, error)
}

// SessionController はセッションの確立と破棄のインターフェース。
// session.Managerが実装する。
type SessionController interface {
	Establish(ctx context.Context, w http.ResponseWriter, email, name string) (*model.Session, error)
	Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	Discard(ctx context.Context, w http.ResponseWriter, id string) error
}

// ProfileEnsurer はログイン時のプロフィール作成のインターフェース。
// profile.Serviceが実装する。
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, email string) (*model.Profile, error)
}

// LoginRecorder はログイン関連のメトリクス記録インターフェース。
// metrics.Collectorが実装する。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordLogout()
}

// AuthHandler はログイン・コールバック・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	flow     LoginFlow
	sessions SessionController
	profiles ProfileEnsurer
	recorder LoginRecorder
	renderer middleware.ErrorRenderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	flow LoginFlow,
	sessions SessionController,
	profiles ProfileEnsurer,
	recorder LoginRecorder,
	renderer middleware.ErrorRenderer,
) *AuthHandler {
	return &AuthHandler{
		flow:     flow,
		sessions: sessions,
		profiles: profiles,
		recorder: recorder,
		renderer: renderer,
	}
}

// Login はOIDCの認可エンドポイントへリダイレクトする。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.flow.BuildAuthorizationRedirect(w)
	if err != nil {
		slog.Error("failed to build authorization redirect",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteInternalServerError(w, h.renderer)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Authorize はIdPからのコールバックを処理する。
// ログインに成功した場合はセッションを確立し、プロフィールを用意してから/profileへリダイレクトする。
// 失敗した場合はセッションを作らずにエラーページを表示する。
// GET /authorize?code=xxx&state=yyy
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.RequestIDFromContext(ctx)

	// 1. コールバックの検証とトークン交換
	claims, err := h.flow.CompleteLogin(ctx, w, r)
	if err != nil {
		slog.Warn("login failed",
			slog.String("reason", err.Error()),
			slog.String("request_id", requestID),
		)
		if errors.Is(err, auth.ErrMalformedCallback) {
			h.recorder.RecordLoginFailure(metrics.LoginFailureCallback)
			middleware.WriteErrorResponse(w, h.renderer, http.StatusBadRequest,
				model.NewInvalidCallbackError("stateまたはcodeがありません"))
			return
		}
		h.recorder.RecordLoginFailure(metrics.LoginFailureAuth)
		middleware.WriteErrorResponse(w, h.renderer, http.StatusUnauthorized, model.NewAuthFailedError())
		return
	}

	// 2. ログイン済みのブラウザであれば、以前のセッションを失効させる
	if prev, ok := middleware.SessionFromContext(ctx); ok {
		if err := h.sessions.Discard(ctx, w, prev.ID); err != nil {
			slog.Error("failed to revoke previous session",
				slog.String("error", err.Error()),
				slog.String("request_id", requestID),
			)
		}
	}

	// 3. セッションの確立
	sess, err := h.sessions.Establish(ctx, w, claims.Email, claims.Name)
	if err != nil {
		slog.Error("failed to establish session",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		h.recorder.RecordLoginFailure(metrics.LoginFailureInternal)
		middleware.WriteInternalServerError(w, h.renderer)
		return
	}

	// 4. プロフィールの取得または作成
	p, err := h.profiles.EnsureProfile(ctx, claims.Email)
	if err != nil {
		slog.Error("failed to ensure profile, revoking session",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		if discardErr := h.sessions.Discard(ctx, w, sess.ID); discardErr != nil {
			slog.Error("failed to revoke session",
				slog.String("error", discardErr.Error()),
				slog.String("request_id", requestID),
			)
		}
		h.recorder.RecordLoginFailure(metrics.LoginFailureInternal)
		middleware.WriteInternalServerError(w, h.renderer)
		return
	}

	h.recorder.RecordLoginSuccess()
	slog.Info("user logged in",
		slog.Int64("profile_id", p.ID),
		slog.String("email", claims.Email),
		slog.String("request_id", requestID),
	)

	http.Redirect(w, r, "/profile", http.StatusFound)
}

// Logout はセッションを破棄してトップページへリダイレクトする。
// セッションがない場合も同じ結果になる。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context(), w, r); err != nil {
		// 削除に失敗してもCookieは失効済みのため、ログアウトは完了として扱う
		slog.Error("failed to delete session on logout",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
	}

	if _, ok := middleware.SessionFromContext(r.Context()); ok {
		h.recorder.RecordLogout()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
