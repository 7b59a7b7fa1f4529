package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/profile"
	"github.com/hitoshi/profilekeeper/internal/security"
	"github.com/hitoshi/profilekeeper/internal/view"
)

// ProfileService はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileService interface {
	Get(ctx context.Context, email string) (*model.Profile, error)
	Update(ctx context.Context, email string, in profile.UpdateInput) (*model.Profile, error)
}

// ProfileRenderer はプロフィールページの描画インターフェース。
type ProfileRenderer interface {
	middleware.ErrorRenderer
	RenderProfile(w http.ResponseWriter, statusCode int, data view.ProfileData)
}

// ProfileHandler はプロフィールの表示・更新のHTTPハンドラー。
// RequireSessionの内側に配置する。
type ProfileHandler struct {
	service  ProfileService
	markup   security.MarkupDetector
	renderer ProfileRenderer
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileService, markup security.MarkupDetector, renderer ProfileRenderer) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		markup:   markup,
		renderer: renderer,
	}
}

// Show はセッションのユーザーのプロフィールを表示する。
// GET /profile
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	p, err := h.service.Get(r.Context(), sess.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.renderer.RenderProfile(w, http.StatusOK, h.pageData(r, sess, p))
}

// Update はフォームの内容でプロフィールを更新し、更新後の値で再表示する。
// emailはセッションの値を使い、フォームからは受け付けない。
// POST /profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, h.renderer, http.StatusBadRequest,
			model.NewInvalidInputError("form", "フォームを読み取れません"))
		return
	}

	in, apiErr := profile.ParseUpdateInput(r.PostForm, h.markup)
	if apiErr != nil {
		current, err := h.service.Get(r.Context(), sess.Email)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		data := h.pageData(r, sess, current)
		data.Nickname = r.PostForm.Get(profile.FieldNickname)
		data.Address = r.PostForm.Get(profile.FieldAddress)
		data.Error = apiErr
		h.renderer.RenderProfile(w, http.StatusBadRequest, data)
		return
	}

	updated, err := h.service.Update(r.Context(), sess.Email, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	data := h.pageData(r, sess, updated)
	data.Saved = true
	h.renderer.RenderProfile(w, http.StatusOK, data)
}

func (h *ProfileHandler) pageData(r *http.Request, sess *model.Session, p *model.Profile) view.ProfileData {
	return view.ProfileData{
		Page:      view.Page{SignedIn: true, Name: sess.Name},
		Profile:   p,
		Nickname:  p.Nickname,
		Address:   p.Address,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
}

// writeServiceError はサービス層のエラーを500として記録・表示する。
// セッションがあるのにプロフィールがない状態は不変条件の破綻であり、404にはしない。
func (h *ProfileHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "profile operation failed"
	if errors.Is(err, model.ErrProfileMissing) {
		msg = "profile missing for established session"
	}
	slog.Error(msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w, h.renderer)
}
