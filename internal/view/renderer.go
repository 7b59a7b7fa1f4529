// Package view はサーバー側で描画するHTMLページを提供する。
// テンプレートはバイナリに埋め込み、起動時に1回だけパースする。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名
const (
	pageIndex   = "index"
	pageProfile = "profile"
	pageError   = "error"
)

// Page は全ページ共通のヘッダー表示に使う値。
type Page struct {
	SignedIn bool
	Name     string
}

// IndexData はトップページの描画データ。
type IndexData struct {
	Page
}

// ProfileData はプロフィールページの描画データ。
// NicknameとAddressはフォームに表示する値で、検証エラー時は送信された値を保持する。
type ProfileData struct {
	Page
	Profile     *model.Profile
	Nickname    string
	Address     string
	CSRFToken   string
	Saved       bool
	Error       *model.APIError
	MaxNickname int
	MaxAddress  int
}

// errorData はエラーページの描画データ。
type errorData struct {
	Page
	Error *model.APIError
}

// Renderer はHTMLテンプレートを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageIndex, pageProfile, pageError} {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// RenderIndex はトップページを描画する。
func (r *Renderer) RenderIndex(w http.ResponseWriter, data IndexData) {
	r.render(w, http.StatusOK, pageIndex, data)
}

// RenderProfile はプロフィールページを描画する。
func (r *Renderer) RenderProfile(w http.ResponseWriter, statusCode int, data ProfileData) {
	data.MaxNickname = model.MaxNicknameLength
	data.MaxAddress = model.MaxAddressLength
	r.render(w, statusCode, pageProfile, data)
}

// RenderError はエラーページを描画する。middleware.ErrorRendererを満たす。
func (r *Renderer) RenderError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	r.render(w, statusCode, pageError, errorData{Error: apiErr})
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中までのHTMLを返さず、text/plainの500にする。
func (r *Renderer) render(w http.ResponseWriter, statusCode int, page string, data any) {
	var buf bytes.Buffer
	if err := r.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.PlainErrorRenderer{}.RenderError(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}

// compile-time interface check
var _ middleware.ErrorRenderer = (*Renderer)(nil)
